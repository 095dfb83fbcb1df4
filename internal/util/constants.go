package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeVideo       = "video/"
	MimeImage       = "image/"
	MimePDF         = "application/pdf"
	MimeText        = "text/"
	MimeZip         = "application/zip"
	MimeOctetStream = "application/octet-stream"
)

var (
	AllowedVideoExtensions = []string{".mp4", ".mov", ".mkv", ".webm"}
	// practical answers may be documents, archives, images or source text
	AllowedPracticalTypes = []string{MimeImage, MimePDF, MimeText, MimeZip, MimeOctetStream}
)
