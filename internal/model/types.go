package model

// Records returned by the remote order-management API.

// Status groups that denote terminal order states.
const (
	StatusGroupClosed   = 6
	StatusGroupCanceled = 7
)

type Order struct {
	ID            int64        `json:"id"`
	Label         string       `json:"id_label" validate:"required"`
	Client        OrderClient  `json:"client"`
	Status        *OrderStatus `json:"status" validate:"required"`
	EngineerID    *int64       `json:"engineer_id,omitempty"`
	Model         string       `json:"model,omitempty"`
	Malfunction   string       `json:"malfunction,omitempty"`
	ManagerNotes  string       `json:"manager_notes,omitempty"`
	EngineerNotes string       `json:"engineer_notes,omitempty"`
}

type OrderClient struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

type OrderStatus struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Group int    `json:"group"`
}

// StatusName is the status display name, empty when the order has no
// status object.
func (o Order) StatusName() string {
	if o.Status == nil {
		return ""
	}
	return o.Status.Name
}

func (o Order) StatusGroup() int {
	if o.Status == nil {
		return 0
	}
	return o.Status.Group
}

// Active reports whether the order is neither closed nor canceled.
func (o Order) Active() bool {
	g := o.StatusGroup()
	return g != StatusGroupClosed && g != StatusGroupCanceled
}

type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Status struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Group int    `json:"group"`
}

type Employee struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Notes     string `json:"notes"`
}

// DisplayName is "first last" as shown in notifications.
func (e Employee) DisplayName() string {
	return e.FirstName + " " + e.LastName
}

// Page is the paginated envelope every list endpoint answers with.
// Fields are pointers so a missing field can be told apart from a zero.
type Page[T any] struct {
	Page  *int `json:"page" validate:"required"`
	Count *int `json:"count" validate:"required"`
	Data  *[]T `json:"data" validate:"required"`
}

// TokenResponse is the body of POST token/new.
type TokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}
