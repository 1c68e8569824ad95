package sharepoint

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned when the Azure AD app credentials
	// or the site ID are empty.
	ErrMissingCredentials = errors.New("sharepoint client id, client secret, tenant id and site id are required")

	// ErrMissingUser is returned when no user email is configured.
	ErrMissingUser = errors.New("sharepoint user email is required")
)

// APIError is a non-2xx response from Microsoft Graph.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// DriveItem is a file or folder of a SharePoint document library.
type DriveItem struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	WebURL string       `json:"webUrl"`
	Size   int64        `json:"size"`
	Folder *FolderFacet `json:"folder,omitempty"`
	File   *FileFacet   `json:"file,omitempty"`

	// Raw is the item exactly as Graph returned it.
	Raw json.RawMessage `json:"-"`
}

// IsFolder reports whether the item is a folder.
func (d DriveItem) IsFolder() bool {
	return d.Folder != nil
}

type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

type FileFacet struct {
	MimeType string `json:"mimeType"`
}

// DriveItemVersion is one stored version of a drive item.
type DriveItemVersion struct {
	ID                   string       `json:"id"`
	LastModifiedDateTime string       `json:"lastModifiedDateTime"`
	LastModifiedBy       *IdentitySet `json:"lastModifiedBy,omitempty"`
}

// ModifiedBy returns the email of the user who saved the version, if known.
func (v DriveItemVersion) ModifiedBy() string {
	if v.LastModifiedBy == nil || v.LastModifiedBy.User == nil {
		return ""
	}
	return v.LastModifiedBy.User.Email
}

type IdentitySet struct {
	User *Identity `json:"user,omitempty"`
}

type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// page is one page of a Graph collection response.
type page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}
