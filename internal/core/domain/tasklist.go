package domain

// TaskList - именованная группа задач; ее имя служит партиционным ключом
// персистентности. Значение передается явно во все use case через конструктор,
// никакого глобального состояния.
type TaskList struct {
	Name string
}
