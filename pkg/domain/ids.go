package domain

import (
	"github.com/google/uuid"

	dErrors "greengate/pkg/domain-errors"
)

// Typed ID wrappers around uuid.UUID. Construct via the Parse* helpers at
// trust boundaries so invalid or nil UUIDs never enter the domain layer.
type (
	UserID   uuid.UUID
	RecordID uuid.UUID
	OrderID  uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseRecordID validates and returns a RecordID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record_id")
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(u), nil
}

// ParseOrderID validates and returns an OrderID.
func ParseOrderID(s string) (OrderID, error) {
	u, err := parseUUID(s, "order_id")
	if err != nil {
		return OrderID{}, err
	}
	return OrderID(u), nil
}

// NewUserID generates a fresh UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewRecordID generates a fresh RecordID.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// NewOrderID generates a fresh OrderID.
func NewOrderID() OrderID { return OrderID(uuid.New()) }

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id RecordID) String() string { return uuid.UUID(id).String() }
func (id OrderID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
