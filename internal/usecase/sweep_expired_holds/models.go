package sweep_expired_holds

// Result итог одного прохода
type Result struct {
	Expired int `json:"expired"` // Удержание снято
	Skipped int `json:"skipped"` // Бронь успела сменить состояние
	Failed  int `json:"failed"`  // Ошибка при снятии, повторится в следующий проход
}
