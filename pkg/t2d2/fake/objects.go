package fake

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/storage"
)

// StorageHandler serves the memory store as a path-style S3 endpoint
// (PUT, GET and HEAD on /{bucket}/{key}). Request signatures are not checked.
// Point storage.S3Config.Endpoint at it to exercise the real S3 client.
func (s *Server) StorageHandler() http.Handler {
	return http.HandlerFunc(s.serveObject)
}

type s3Error struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string   `xml:"Code"`
	Message  string   `xml:"Message"`
	Resource string   `xml:"Resource"`
}

func writeS3Error(w http.ResponseWriter, status int, code, message, resource string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(s3Error{Code: code, Message: message, Resource: resource})
}

func (s *Server) serveObject(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket == "" || key == "" {
		writeS3Error(w, http.StatusBadRequest, "InvalidRequest", "path must be /{bucket}/{key}", r.URL.Path)
		return
	}
	s.logger.Debug("storage request",
		zap.String("method", r.Method),
		zap.String("bucket", bucket),
		zap.String("key", key),
	)

	switch r.Method {
	case http.MethodPut:
		body, err := objectBody(r)
		if err != nil {
			writeS3Error(w, http.StatusBadRequest, "IncompleteBody", err.Error(), r.URL.Path)
			return
		}
		if err := s.store.Put(r.Context(), bucket, key, bytes.NewReader(body), int64(len(body)), r.Header.Get("Content-Type")); err != nil {
			writeS3Error(w, http.StatusInternalServerError, "InternalError", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("ETag", strconv.Quote(strconv.Itoa(len(body))))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		var buf bytes.Buffer
		if _, err := s.store.Get(r.Context(), bucket, key, &buf); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				writeS3Error(w, http.StatusNotFound, "NoSuchKey", "key does not exist", r.URL.Path)
				return
			}
			writeS3Error(w, http.StatusInternalServerError, "InternalError", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(buf.Bytes())
		}
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT")
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "unsupported method "+r.Method, r.URL.Path)
	}
}

// objectBody returns the payload of a PUT, unwrapping aws-chunked encoding
// when the client streamed it with chunk signatures or trailing checksums.
func objectBody(r *http.Request) ([]byte, error) {
	chunked := strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") ||
		strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-")
	if !chunked {
		return io.ReadAll(r.Body)
	}
	return decodeAWSChunked(r.Body)
}

// decodeAWSChunked reads "<hex-size>[;ext]\r\n<data>\r\n" frames up to the
// zero-length frame and drops any trailers.
func decodeAWSChunked(body io.Reader) ([]byte, error) {
	br := bufio.NewReader(body)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("bad chunk size %q", sizeHex)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
		if crlf, err := br.ReadString('\n'); err != nil || strings.TrimSpace(crlf) != "" {
			return nil, errors.New("chunk not terminated by CRLF")
		}
	}
}
