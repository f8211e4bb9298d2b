package upload

import "errors"

var (
	ErrOwnerMissing    = errors.New("upload owner is missing")
	ErrUploadNotFound  = errors.New("upload not found")
	ErrNotOwner        = errors.New("you do not own this upload")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrInvalidMimeType = errors.New("file type is not allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrEmptyFilename   = errors.New("file name is empty")
	ErrInvalidFilename = errors.New("file name is not allowed")
	ErrUnknownField    = errors.New("unknown upload field")
	ErrPathTaken       = errors.New("storage path already recorded")
)
