package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// 文件上传相关常量
const (
	MimeImage       = "image/"
	MimePDF         = "application/pdf"
	MimeText        = "text/plain"
	MimeCSV         = "text/csv"
	MimeOctetStream = "application/octet-stream"
)

const (
	MaxImageSize    = 5 << 20
	MaxDocumentSize = 10 << 20
)

var (
	AllowedImageExtensions    = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
	AllowedDocumentExtensions = []string{".txt", ".md", ".csv", ".json"}
)
