package ssh

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
)

// uploader pushes descriptor files to the remote host via SFTP.
type uploader struct {
	client *Client
	config *Config
	logger zerolog.Logger
}

// UploadFile uploads a single file to the remote host via SFTP.
func (c *Client) UploadFile(ctx context.Context, localPath string, remotePath string, mode uint32) error {
	if c.uploader == nil {
		return &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("uploader not initialized"),
			IsTemporary: false,
			IsAuthError: false,
		}
	}
	return c.uploader.uploadFile(ctx, localPath, remotePath, mode)
}

// UploadBytes writes an in-memory document to a remote file via SFTP.
func (c *Client) UploadBytes(ctx context.Context, data []byte, remotePath string, mode uint32) error {
	if c.uploader == nil {
		return &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("uploader not initialized"),
			IsTemporary: false,
			IsAuthError: false,
		}
	}
	return c.uploader.uploadBytes(ctx, data, remotePath, mode)
}

// VerifyUpload reads a remote file back and checks its content against
// the given bytes.
func (c *Client) VerifyUpload(ctx context.Context, data []byte, remotePath string) error {
	if c.uploader == nil {
		return &TransportError{
			Op:          "verify",
			Err:         fmt.Errorf("uploader not initialized"),
			IsTemporary: false,
			IsAuthError: false,
		}
	}
	return c.uploader.verifyUpload(ctx, data, remotePath)
}

// createSFTPClient creates a new SFTP client over the SSH connection.
func (u *uploader) createSFTPClient() (*sftp.Client, error) {
	sshClient, err := u.client.getClient()
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, &TransportError{
			Op:          "sftp-init",
			Err:         fmt.Errorf("failed to create SFTP client: %w", err),
			IsTemporary: true,
			IsAuthError: false,
		}
	}

	return sftpClient, nil
}

// uploadFile uploads a single file to the remote host.
func (u *uploader) uploadFile(ctx context.Context, localPath string, remotePath string, mode uint32) error {
	startTime := time.Now()

	u.logger.Debug().
		Str("local", localPath).
		Str("remote", remotePath).
		Uint32("mode", mode).
		Msg("Uploading file")

	localFile, err := os.Open(localPath)
	if err != nil {
		return &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to open local file: %w", err),
			IsTemporary: false,
			IsAuthError: false,
		}
	}
	defer localFile.Close()

	bytesWritten, err := u.writeRemote(ctx, localFile, remotePath, mode)
	if err != nil {
		return err
	}

	u.logger.Info().
		Str("local", localPath).
		Str("remote", remotePath).
		Int64("bytes", bytesWritten).
		Dur("duration", time.Since(startTime)).
		Msg("File uploaded")

	return nil
}

// uploadBytes writes an in-memory document to a remote file.
func (u *uploader) uploadBytes(ctx context.Context, data []byte, remotePath string, mode uint32) error {
	startTime := time.Now()

	u.logger.Debug().
		Str("remote", remotePath).
		Int("size", len(data)).
		Uint32("mode", mode).
		Msg("Uploading document")

	bytesWritten, err := u.writeRemote(ctx, bytes.NewReader(data), remotePath, mode)
	if err != nil {
		return err
	}

	u.logger.Info().
		Str("remote", remotePath).
		Int64("bytes", bytesWritten).
		Dur("duration", time.Since(startTime)).
		Msg("Document uploaded")

	return nil
}

// writeRemote copies src into a freshly created remote file, creating
// parent directories as needed.
func (u *uploader) writeRemote(ctx context.Context, src io.Reader, remotePath string, mode uint32) (int64, error) {
	sftpClient, err := u.createSFTPClient()
	if err != nil {
		return 0, err
	}
	defer sftpClient.Close()

	remoteDir := path.Dir(remotePath)
	if err := sftpClient.MkdirAll(remoteDir); err != nil {
		return 0, &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to create remote directory: %w", err),
			IsTemporary: false,
			IsAuthError: false,
		}
	}

	remoteFile, err := sftpClient.Create(remotePath)
	if err != nil {
		return 0, &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to create remote file: %w", err),
			IsTemporary: true,
			IsAuthError: false,
		}
	}
	defer remoteFile.Close()

	bytesWritten, err := u.copyWithContext(ctx, remoteFile, src)
	if err != nil {
		return bytesWritten, &TransportError{
			Op:          "upload",
			Err:         fmt.Errorf("failed to copy file: %w", err),
			IsTemporary: true,
			IsAuthError: false,
		}
	}

	if mode > 0 {
		if err := sftpClient.Chmod(remotePath, os.FileMode(mode)); err != nil {
			u.logger.Warn().Err(err).Msg("Failed to set file permissions")
		}
	}

	return bytesWritten, nil
}

// verifyUpload downloads the remote file and compares checksums with
// the expected content.
func (u *uploader) verifyUpload(ctx context.Context, data []byte, remotePath string) error {
	u.logger.Debug().Str("remote", remotePath).Msg("Verifying upload")

	remote, err := u.downloadBytes(ctx, remotePath)
	if err != nil {
		return err
	}

	wantSum := sha256.Sum256(data)
	gotSum := sha256.Sum256(remote)
	if wantSum != gotSum {
		return &TransportError{
			Op:          "verify",
			Err:         fmt.Errorf("checksum mismatch for %s: expected %x, got %x", remotePath, wantSum, gotSum),
			IsTemporary: false,
			IsAuthError: false,
		}
	}

	u.logger.Debug().Str("remote", remotePath).Str("checksum", fmt.Sprintf("%x", gotSum)).Msg("Upload verified")
	return nil
}

// downloadBytes reads a remote file into memory.
func (u *uploader) downloadBytes(ctx context.Context, remotePath string) ([]byte, error) {
	sftpClient, err := u.createSFTPClient()
	if err != nil {
		return nil, err
	}
	defer sftpClient.Close()

	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return nil, &TransportError{
			Op:          "download",
			Err:         fmt.Errorf("failed to open remote file: %w", err),
			IsTemporary: true,
			IsAuthError: false,
		}
	}
	defer remoteFile.Close()

	var buf bytes.Buffer
	if _, err := u.copyWithContext(ctx, &buf, remoteFile); err != nil {
		return nil, &TransportError{
			Op:          "download",
			Err:         fmt.Errorf("failed to read remote file: %w", err),
			IsTemporary: true,
			IsAuthError: false,
		}
	}

	return buf.Bytes(), nil
}

// copyWithContext copies data from src to dst while respecting context cancellation.
func (u *uploader) copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return written, err
		}
	}

	return written, nil
}
