package endpoints

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/course"
	"github.com/jackzampolin/quill/internal/docx"
	"github.com/jackzampolin/quill/internal/svcctx"
)

// ExportRequest is a course with generated chapter content.
type ExportRequest struct {
	Title    string           `json:"title"`
	Chapters []course.Chapter `json:"chapters"`
}

// ExportEndpoint handles POST /api/export.
type ExportEndpoint struct{}

func (e *ExportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/export", e.handler
}

func (e *ExportEndpoint) RequiresLLM() bool { return false }

// handler godoc
//
//	@Summary		Export a course as DOCX
//	@Description	Renders the title and chapters (summary points and markdown content) into a Word document.
//	@Tags			course
//	@Accept			json
//	@Produce		application/vnd.openxmlformats-officedocument.wordprocessingml.document
//	@Param			request	body		ExportRequest	true	"Course"
//	@Success		200		{file}		file
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/export [post]
func (e *ExportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var raw struct {
		Title    json.RawMessage `json:"title"`
		Chapters json.RawMessage `json:"chapters"`
	}
	if !decodeJSON(w, r, &raw) {
		return
	}
	req, ok := parseExport(raw.Title, raw.Chapters)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	doc := docx.Document{Title: req.Title}
	for _, ch := range req.Chapters {
		doc.Chapters = append(doc.Chapters, docx.Chapter{
			Title:   ch.Title,
			Summary: ch.Summary,
			Content: ch.Content,
		})
	}

	data, err := docx.NewBuilder(doc).Bytes()
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("docx export failed", "title", req.Title, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to build document")
		return
	}

	w.Header().Set("Content-Type", docx.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+docx.FileName(req.Title)+`"`)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// parseExport requires a non-empty string title and a chapters array.
func parseExport(title, chapters json.RawMessage) (ExportRequest, bool) {
	var req ExportRequest
	if err := json.Unmarshal(title, &req.Title); err != nil || strings.TrimSpace(req.Title) == "" {
		return req, false
	}
	chapters = bytes.TrimSpace(chapters)
	if len(chapters) == 0 || chapters[0] != '[' {
		return req, false
	}
	if err := json.Unmarshal(chapters, &req.Chapters); err != nil {
		return req, false
	}
	return req, true
}

func (e *ExportEndpoint) Command(getServerURL func() string) *cobra.Command {
	var inFile, dest string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a course to a DOCX file",
		Long: `Reads a course (title and chapters with content) as JSON and writes
the rendered Word document. The file name defaults to the course title.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outline, err := readOutline(inFile)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())

			var buf bytes.Buffer
			filename, err := client.Download(cmd.Context(), "/api/export", ExportRequest{
				Title:    outline.Title,
				Chapters: outline.Chapters,
			}, &buf)
			if err != nil {
				return err
			}

			if dest == "" {
				dest = localName(filename, outline.Title)
			}
			if dir := filepath.Dir(dest); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", dest, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", dest, buf.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&inFile, "file", "f", "", "Course JSON file (default: stdin)")
	cmd.Flags().StringVar(&dest, "dest", "", "Output path (default: <title>.docx)")
	return cmd
}

// localName turns the server's escaped file name into a safe local one.
func localName(escaped, title string) string {
	name, err := url.PathUnescape(escaped)
	if err != nil || name == "" {
		name = title + ".docx"
	}
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return "course.docx"
	}
	return name
}

// readOutline decodes an outline from path, or stdin when path is empty.
func readOutline(path string) (*course.Outline, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	var outline course.Outline
	if err := json.NewDecoder(r).Decode(&outline); err != nil {
		return nil, fmt.Errorf("failed to decode outline: %w", err)
	}
	return &outline, nil
}
