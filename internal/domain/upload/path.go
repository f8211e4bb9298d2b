package upload

import "strconv"

// UploadOwner is the user an uploaded file belongs to.
type UploadOwner struct {
	ID int64
}

// UploadRecord is a file on its way to storage: who owns it and the name
// the client sent.
type UploadRecord struct {
	Owner    *UploadOwner
	Filename string
}

// UploadTo maps a record and the client filename to a storage path.
type UploadTo func(rec *UploadRecord, filename string) (string, error)

// UserDirectoryPath namespaces files per user as user_<owner id>/<filename>.
// The filename is used as given; an empty one yields "user_<id>/".
func UserDirectoryPath(rec *UploadRecord, filename string) (string, error) {
	if rec == nil || rec.Owner == nil {
		return "", ErrOwnerMissing
	}
	return "user_" + strconv.FormatInt(rec.Owner.ID, 10) + "/" + filename, nil
}
