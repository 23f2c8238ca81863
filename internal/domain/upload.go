package domain

import "io"

// Upload is an audio file received from a client before it becomes a job.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}
