package postgres_adapter

// Правила маппинга Task <-> строка документа: отсутствующее payload-поле
// (nil) хранится пустой строкой, а пустая строка при чтении снова становится
// отсутствующим значением. Round-trip обязан быть точным в обе стороны.

func payloadToColumn(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func columnToPayload(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
