package http

import (
	"time"

	"user-admin/internal/domain"
	"user-admin/internal/storage"
)

type UserResponse struct {
	ID          int64   `json:"id"`
	Forename    string  `json:"forename"`
	Surname     string  `json:"surname"`
	FullName    string  `json:"fullName"`
	Email       string  `json:"email"`
	IsActive    bool    `json:"isActive"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
}

type UserDetailResponse struct {
	User UserResponse  `json:"user"`
	Logs []LogResponse `json:"logs"`
}

type LogResponse struct {
	ID        int64  `json:"id"`
	UserID    *int64 `json:"userId"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func userToResponse(u domain.User) UserResponse {
	resp := UserResponse{
		ID:       u.ID,
		Forename: u.Forename,
		Surname:  u.Surname,
		FullName: u.FullName(),
		Email:    u.Email,
		IsActive: u.IsActive,
	}
	if u.DateOfBirth != nil {
		v := u.DateOfBirth.Format(dateLayout)
		resp.DateOfBirth = &v
	}
	return resp
}

func logToResponse(e domain.LogEntry) LogResponse {
	return LogResponse{
		ID:        e.ID,
		UserID:    e.UserID,
		Action:    e.Action,
		Details:   e.Details,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func logsToResponse(entries []domain.LogEntry) []LogResponse {
	resp := make([]LogResponse, len(entries))
	for i := range entries {
		resp[i] = logToResponse(entries[i])
	}
	return resp
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
