package store

// QueryLog records one completed chat exchange for audit purposes.
type QueryLog struct {
	ID int32

	// UID is a short, externally visible identifier.
	UID string

	UserID        int32
	Query         string
	Response      string
	OperationType string
	DocumentIDs   []int64
	CreatedTs     int64
}

type FindQueryLog struct {
	ID     *int32
	UID    *string
	UserID *int32

	Limit  *int
	Offset *int
}

type DeleteQueryLog struct {
	ID     int32
	UserID int32
}
