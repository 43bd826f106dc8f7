package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// GDriveStore keeps artifacts in Google Drive, one folder per session under
// a fixed parent folder.
type GDriveStore struct {
	logger   *slog.Logger
	service  *drive.Service
	parentID string
}

func NewGDriveStore(ctx context.Context, logger *slog.Logger, credentialsFile, parentFolderID string) (*GDriveStore, error) {
	service, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}
	return &GDriveStore{
		logger:   logger,
		service:  service,
		parentID: parentFolderID,
	}, nil
}

func (gd *GDriveStore) Save(sessionID, filename string, content []byte) error {
	folderID, err := gd.ensureSessionFolder(sessionID)
	if err != nil {
		return err
	}

	file := &drive.File{
		Name:     sanitizeName(filename),
		Parents:  []string{folderID},
		MimeType: "application/pdf",
	}
	uploaded, err := gd.service.Files.Create(file).Media(bytes.NewReader(content)).Do()
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}

	gd.logger.Debug("stored artifact in drive",
		"session_id", sessionID,
		"filename", filename,
		"file_id", uploaded.Id,
	)
	return nil
}

func (gd *GDriveStore) Archive(sessionID string) ([]byte, error) {
	folderID, err := gd.findSessionFolder(sessionID)
	if err != nil {
		return nil, err
	}

	list, err := gd.service.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
		Fields("files(id, name)").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list session artifacts: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range list.Files {
		resp, err := gd.service.Files.Get(f.Id).Download()
		if err != nil {
			return nil, fmt.Errorf("failed to download artifact %s: %w", f.Name, err)
		}
		w, err := zw.Create(f.Name)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		_, err = io.Copy(w, resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gd *GDriveStore) PurgeExpired(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention).Format(time.RFC3339)
	list, err := gd.service.Files.List().
		Q(fmt.Sprintf("'%s' in parents and mimeType = 'application/vnd.google-apps.folder' and modifiedTime < '%s' and trashed = false",
			gd.parentID, cutoff)).
		Fields("files(id, name)").
		Do()
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	removed := 0
	for _, f := range list.Files {
		if err := gd.service.Files.Delete(f.Id).Do(); err != nil {
			gd.logger.Warn("failed to purge drive session", "session", f.Name, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (gd *GDriveStore) ensureSessionFolder(sessionID string) (string, error) {
	if id, err := gd.findSessionFolder(sessionID); err == nil {
		return id, nil
	}

	folder := &drive.File{
		Name:     sanitizeName(sessionID),
		MimeType: "application/vnd.google-apps.folder",
		Parents:  []string{gd.parentID},
	}
	created, err := gd.service.Files.Create(folder).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create session folder: %w", err)
	}
	return created.Id, nil
}

func (gd *GDriveStore) findSessionFolder(sessionID string) (string, error) {
	list, err := gd.service.Files.List().
		Q(fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = 'application/vnd.google-apps.folder' and trashed = false",
			sanitizeName(sessionID), gd.parentID)).
		Fields("files(id)").
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up session folder: %w", err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("session %s has no artifacts", sessionID)
	}
	return list.Files[0].Id, nil
}
