// Package gdrive операции Google Drive (папки, копирование шаблонов) через Service Account тенанта.
package gdrive

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

type Folder struct {
	ID  string
	URL string
}

type File struct {
	ID          string
	WebViewLink string
}

// Drive сессия с правами одного Service Account
type Drive interface {
	CreateFolder(ctx context.Context, name, parentID string, sharedDrive bool) (Folder, error)
	CopyFile(ctx context.Context, sourceID, name, parentID string) (File, error)
}

// Connector открывает Drive по JSON ключу Service Account
type Connector interface {
	Connect(ctx context.Context, serviceAccountJSON string) (Drive, error)
}

type ServiceConnector struct {
	httpClient *http.Client
	endpoint   string
}

// NewConnector httpClient и endpoint нужны для стендов и тестов, в проде оба пустые
func NewConnector(httpClient *http.Client, endpoint string) *ServiceConnector {
	return &ServiceConnector{httpClient: httpClient, endpoint: endpoint}
}

func (c *ServiceConnector) Connect(ctx context.Context, serviceAccountJSON string) (Drive, error) {
	opts := make([]option.ClientOption, 0, 3)
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	if c.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(c.httpClient))
	} else {
		creds, err := google.CredentialsFromJSON(ctx, []byte(serviceAccountJSON), drive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("drive credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &service{files: srv.Files}, nil
}

type service struct {
	files *drive.FilesService
}

func (s *service) CreateFolder(ctx context.Context, name, parentID string, sharedDrive bool) (Folder, error) {
	safe := SanitizeFolderName(name)
	call := s.files.Create(&drive.File{
		Name:     safe,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").Context(ctx)
	if sharedDrive {
		call = call.SupportsAllDrives(true)
	}

	f, err := call.Do()
	if err != nil {
		return Folder{}, fmt.Errorf("drive createFolder %q: %w", safe, err)
	}
	return Folder{ID: f.Id, URL: FolderURL(f.Id)}, nil
}

func (s *service) CopyFile(ctx context.Context, sourceID, name, parentID string) (File, error) {
	f, err := s.files.Copy(sourceID, &drive.File{
		Name:    name,
		Parents: []string{parentID},
	}).SupportsAllDrives(true).Fields("id", "webViewLink").Context(ctx).Do()
	if err != nil {
		return File{}, fmt.Errorf("drive files.copy: %w", err)
	}

	link := f.WebViewLink
	if link == "" {
		link = "https://drive.google.com/file/d/" + f.Id + "/view"
	}
	return File{ID: f.Id, WebViewLink: link}, nil
}

func FolderURL(id string) string {
	return "https://drive.google.com/drive/folders/" + id
}

var folderNameReplacer = strings.NewReplacer(
	"/", "_", `\`, "_", "*", "_", "?", "_", "<", "_", ">", "_", "|", "_", `"`, "_",
)

// SanitizeFolderName Drive не принимает часть символов в именах
func SanitizeFolderName(name string) string {
	return strings.TrimSpace(folderNameReplacer.Replace(name))
}
