package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/ultronhq/ultron/internal/errors"
	"github.com/ultronhq/ultron/internal/models"
)

const (
	MaxUploadSize = 20 * 1024 * 1024 // 20MB
)

// UploadFile uploads a file from disk as a chat attachment
func (c *Client) UploadFile(ctx context.Context, filePath string) (*models.Upload, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, apierrors.NewUploadError(filePath, 0, "", fmt.Errorf("failed to stat file: %w", err))
	}
	if fileInfo.IsDir() {
		return nil, apierrors.NewUploadError(filePath, 0, "path is a directory", nil)
	}
	if fileInfo.Size() > MaxUploadSize {
		return nil, apierrors.NewUploadError(filePath, 0, fmt.Sprintf("file size exceeds maximum %d bytes", MaxUploadSize), nil)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, apierrors.NewUploadError(filePath, 0, "", fmt.Errorf("failed to open file: %w", err))
	}
	defer func() {
		_ = file.Close()
	}()

	return c.UploadFromReader(ctx, file, filepath.Base(filePath))
}

// UploadFromReader uploads the contents of reader under fileName
func (c *Client) UploadFromReader(ctx context.Context, reader io.Reader, fileName string) (*models.Upload, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, apierrors.NewUploadError(fileName, 0, "", fmt.Errorf("failed to create form file: %w", err))
	}

	n, err := io.Copy(part, io.LimitReader(reader, MaxUploadSize+1))
	if err != nil {
		return nil, apierrors.NewUploadError(fileName, 0, "", fmt.Errorf("failed to write file data: %w", err))
	}
	if n > MaxUploadSize {
		return nil, apierrors.NewUploadError(fileName, 0, fmt.Sprintf("data size exceeds maximum %d bytes", MaxUploadSize), nil)
	}

	_ = writer.Close()

	respBody, err := c.doJSON(ctx, "upload", http.MethodPost, models.PathUpload, &body, writer.FormDataContentType())
	if err != nil {
		return nil, apierrors.NewUploadError(fileName, apierrors.GetHTTPStatus(err), "", err)
	}

	if !gjson.ValidBytes(respBody) {
		return nil, apierrors.NewUploadError(fileName, 0, "", apierrors.ErrInvalidResponse)
	}

	upload := &models.Upload{
		URL:      gjson.GetBytes(respBody, PathUploadURL).String(),
		Filename: gjson.GetBytes(respBody, PathUploadFilename).String(),
	}
	if upload.Filename == "" {
		upload.Filename = fileName
	}
	return upload, nil
}
