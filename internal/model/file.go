package model

import "time"

// UploadRequest 申请签名上传地址
type UploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Folder      string `json:"folder"`
}

// SignedUpload 限时预授权的直传地址
type SignedUpload struct {
	UploadURL string    `json:"upload_url"`
	FileURL   string    `json:"file_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StoredFile 上传完成后的文件引用
type StoredFile struct {
	FileURL string `json:"file_url"`
	Key     string `json:"key"`
}
