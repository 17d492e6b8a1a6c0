// Package model содержит доменные сущности сервиса продажи билетов на события.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет зарегистрированного пользователя.
type User struct {
	ID           int64           `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	NationalID   string          `json:"dni"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	PasswordHash []byte          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"createdAt"`
	DeletedAt    *time.Time      `json:"-"`
}

// UserSummary содержит публичные данные пользователя, встраиваемые в события.
type UserSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Category описывает категорию события.
type Category string

const (
	CategoryFestival         Category = "FESTIVAL"
	CategoryRecital          Category = "RECITAL"
	CategoryThematicMeeting  Category = "REUNION_TEMATICA"
	CategoryNeighborhoodMeet Category = "ENCUENTRO_BARRIAL"
	CategoryBirthday         Category = "CUMPLEANIOS"
	CategoryWedding          Category = "CASAMIENTO"
	CategoryOther            Category = "OTRO"
)

// Valid сообщает, входит ли категория в допустимый набор.
func (c Category) Valid() bool {
	switch c {
	case CategoryFestival, CategoryRecital, CategoryThematicMeeting, CategoryNeighborhoodMeet,
		CategoryBirthday, CategoryWedding, CategoryOther:
		return true
	}
	return false
}

// EventState описывает состояние события, выведенное из флагов isPaid и isCancelled.
type EventState int

const (
	EventStateFree EventState = iota
	EventStatePaid
	EventStateCancelled
)

func (s EventState) String() string {
	switch s {
	case EventStateFree:
		return "free"
	case EventStatePaid:
		return "paid"
	case EventStateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Event описывает событие, созданное пользователем.
type Event struct {
	ID               int64               `json:"id"`
	Title            string              `json:"title"`
	Date             time.Time           `json:"date"`
	ShortDescription string              `json:"shortDescription"`
	FullDescription  string              `json:"fullDescription"`
	Location         string              `json:"location"`
	Category         Category            `json:"category"`
	IsPaid           bool                `json:"isPaid"`
	Price            decimal.NullDecimal `json:"price"`
	CreatorID        int64               `json:"creatorId"`
	IsCancelled      bool                `json:"isCancelled"`
	HasImage         bool                `json:"hasImage"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// State возвращает состояние события. Отмена имеет приоритет над платностью.
func (e *Event) State() EventState {
	switch {
	case e.IsCancelled:
		return EventStateCancelled
	case e.IsPaid:
		return EventStatePaid
	default:
		return EventStateFree
	}
}

// EventDetails дополняет событие данными создателя и счётчиками участников.
type EventDetails struct {
	Event
	Creator         UserSummary `json:"creator"`
	AttendanceCount int         `json:"attendanceCount"`
	PurchaseCount   int         `json:"purchaseCount"`
}

// EventFilter задаёт параметры выборки публичного списка событий.
type EventFilter struct {
	Category Category
	IsPaid   *bool
	Search   string
	From     time.Time
}

// EventImage содержит бинарные данные изображения события.
type EventImage struct {
	Data     []byte
	MimeType string
}

// Attendance подтверждает участие пользователя в событии.
type Attendance struct {
	UserID    int64     `json:"userId"`
	EventID   int64     `json:"eventId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Purchase описывает покупку билетов на платное событие.
type Purchase struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	EventID     int64           `json:"eventId"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	PurchasedAt time.Time       `json:"purchasedAt"`
}

// PurchaseWithEvent содержит покупку вместе с кратким описанием события.
type PurchaseWithEvent struct {
	Purchase
	Event   Event       `json:"event"`
	Creator UserSummary `json:"creator"`
}

// PaidEvent описывает платное событие пользователя с количеством билетов и суммой оплаты.
type PaidEvent struct {
	Event
	Quantity  int             `json:"quantity"`
	TotalPaid decimal.Decimal `json:"totalPaid"`
}

// UserEvents группирует события пользователя по способу доступа.
type UserEvents struct {
	FreeEvents []Event     `json:"freeEvents"`
	PaidEvents []PaidEvent `json:"paidEvents"`
}

// Refund описывает возврат средств одному покупателю при отмене события.
type Refund struct {
	UserID int64           `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

// Cancellation описывает результат отмены события.
type Cancellation struct {
	Event   Event           `json:"event"`
	Refunds []Refund        `json:"refunds"`
	Total   decimal.Decimal `json:"totalRefunded"`
}

// Balance содержит текущий баланс пользователя.
type Balance struct {
	Current decimal.Decimal `json:"balance"`
}

// Registration содержит данные для регистрации пользователя.
type Registration struct {
	Username   string
	FirstName  string
	LastName   string
	NationalID string
	Email      string
	Password   string
}

// EventInput содержит данные для создания события.
// Price учитывается только для платных событий. Image необязательно.
type EventInput struct {
	Title            string
	Date             time.Time
	ShortDescription string
	FullDescription  string
	Location         string
	Category         Category
	IsPaid           bool
	Price            decimal.NullDecimal
	Image            *EventImage
}

// EventPatch описывает частичное изменение события. Nil-поля и Price с Valid=false не меняются.
type EventPatch struct {
	Title            *string
	Date             *time.Time
	ShortDescription *string
	FullDescription  *string
	Location         *string
	Category         *Category
	IsPaid           *bool
	Price            decimal.NullDecimal
	Image            *EventImage
}
