package resources

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 30 * time.Second

var httpClient = &http.Client{
	Timeout: requestTimeout,
}

// ArchiveVersion is the freshness token of a downloaded archive, compared
// against the origin's HTTP caching headers.
type ArchiveVersion struct {
	LastModified string
	ETag         string
}

func DownloadArchive(url string) (*zip.Reader, ArchiveVersion, error) {
	response, err := httpClient.Get(url)
	if err != nil {
		return nil, ArchiveVersion{}, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, ArchiveVersion{}, fmt.Errorf("unable to download archive at '%s': status code %d", url, response.StatusCode)
	}

	version, err := GetArchiveVersion(url)
	if err != nil {
		return nil, ArchiveVersion{}, err
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, ArchiveVersion{}, err
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, ArchiveVersion{}, err
	}

	return archive, version, nil
}

func GetArchiveVersion(url string) (ArchiveVersion, error) {
	request, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return ArchiveVersion{}, err
	}

	response, err := httpClient.Do(request)
	if err != nil {
		return ArchiveVersion{}, err
	}
	defer response.Body.Close()

	return ArchiveVersion{
		LastModified: response.Header.Get("Last-Modified"),
		ETag:         response.Header.Get("ETag"),
	}, nil
}

// IsArchiveStale probes the archive with a HEAD request and compares the
// caching headers against the previously recorded version token.
func IsArchiveStale(url string, version ArchiveVersion) (bool, error) {
	probed, err := GetArchiveVersion(url)
	if err != nil {
		return false, err
	}

	if probed.LastModified != "" {
		return probed.LastModified != version.LastModified, nil
	}
	if probed.ETag != "" {
		return probed.ETag != version.ETag, nil
	}

	return false, nil
}

func openArchiveFile(archive *zip.Reader, name string) (io.ReadCloser, error) {
	for _, archiveFile := range archive.File {
		if archiveFile.Name == name {
			return archiveFile.Open()
		}
	}

	return nil, fmt.Errorf("archive does not contain %s", name)
}
