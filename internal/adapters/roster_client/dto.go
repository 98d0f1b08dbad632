package roster_client

// newTaskNotification - тело оповещения коллаборатора о новой задаче.
// location — разыменовываемая ссылка на созданную задачу.
type newTaskNotification struct {
	Location     string `json:"location"`
	TaskListName string `json:"taskListName"`
}
