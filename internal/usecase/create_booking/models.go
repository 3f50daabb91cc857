package create_booking

import "time"

// Request модель запроса на создание черновика брони
type Request struct {
	SlotID        int64   // ID слота
	Qty           int     // Количество мест
	CustomerID    string  // Внешний ID клиента
	CustomerName  string  // Имя клиента
	CustomerPhone *string // Телефон для SMS (опционально)
	Actor         string  // Кто создает бронь (для аудита)
}

// Response модель ответа с созданной бронью
type Response struct {
	ID            int64
	Code          string // Короткий код брони для клиента
	SlotID        int64
	Qty           int
	State         string
	CustomerID    string
	CustomerName  string
	CustomerPhone *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
