package store

// Document is a regulatory reference file available to chat requests.
type Document struct {
	ID         int32
	Filename   string
	Filepath   string
	FileType   string
	FileSize   int64
	UploadedBy int32
	UploadedTs int64
	Deleted    bool
}

// FindDocument filters documents. A nil Deleted matches live documents only.
type FindDocument struct {
	ID         *int32
	UploadedBy *int32
	Deleted    *bool
}

type DeleteDocument struct {
	ID int32
}
