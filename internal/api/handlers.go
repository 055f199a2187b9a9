package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/property-report/internal/county"
	"github.com/sells-group/property-report/internal/model"
	"github.com/sells-group/property-report/internal/render"
	"github.com/sells-group/property-report/internal/report"
)

// reportBody is the JSON body of POST /api/report and the download endpoint.
type reportBody struct {
	Address      string            `json:"address" validate:"required,max=512"`
	County       string            `json:"county" validate:"max=32"`
	ManualValues map[string]string `json:"manualValues" validate:"max=200,dive,keys,required,max=64,endkeys,max=2048"`
	// CurrentValues is the older name for ManualValues.
	CurrentValues map[string]string `json:"currentValues" validate:"max=200,dive,keys,required,max=64,endkeys,max=2048"`
	Preferences   map[string]string `json:"preferences" validate:"dive,keys,required,endkeys,omitempty,oneof=auto api county attom"`
	UploadedImage imageRef          `json:"uploadedImage"`
	Sources       *report.Sources   `json:"sources"`
}

// imageRef accepts a bare string or an object with a dataUrl or url member.
type imageRef string

func (i *imageRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = imageRef(s)
		return nil
	}
	var obj struct {
		DataURL string `json:"dataUrl"`
		URL     string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("uploadedImage must be a string or {dataUrl}: %w", err)
	}
	if obj.DataURL != "" {
		*i = imageRef(obj.DataURL)
	} else {
		*i = imageRef(obj.URL)
	}
	return nil
}

func (b reportBody) request() report.Request {
	manual := make(map[string]string, len(b.ManualValues)+len(b.CurrentValues))
	for k, v := range b.CurrentValues {
		manual[k] = v
	}
	for k, v := range b.ManualValues {
		manual[k] = v
	}
	return report.Request{
		Address:       b.Address,
		County:        b.County,
		ManualValues:  manual,
		Preferences:   b.Preferences,
		UploadedImage: string(b.UploadedImage),
	}
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (reportBody, bool) {
	var body reportBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return body, false
	}
	if err := s.validate.Struct(body); err != nil {
		writeValidation(w, err)
		return body, false
	}
	return body, true
}

func writeValidation(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag()),
			Kind:  "validation",
			Field: fe.Field(),
		})
		return
	}
	var ve *report.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error(), Kind: "validation", Field: ve.Field})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// build fetches fresh sources unless the body carries previously fetched ones.
func (s *Server) build(r *http.Request, body reportBody) (*model.Report, report.Sources, error) {
	req := body.request()
	if body.Sources != nil {
		return s.svc.Rebuild(req, *body.Sources)
	}
	return s.svc.Build(r.Context(), req)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reportResponse struct {
	Address string         `json:"address,omitempty"`
	Report  *model.Report  `json:"report"`
	Sources report.Sources `json:"sources"`
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	address := strings.TrimSpace(q.Get("address"))
	if address == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "address parameter is required", Kind: "validation", Field: "address"})
		return
	}
	rep, srcs, err := s.svc.Build(r.Context(), report.Request{Address: address, County: q.Get("county")})
	if err != nil {
		writeValidation(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Address: address, Report: rep, Sources: srcs})
}

func (s *Server) handlePostReport(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	rep, srcs, err := s.build(r, body)
	if err != nil {
		writeValidation(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Report: rep, Sources: srcs})
}

type renderFailure struct {
	Error  string        `json:"error"`
	Kind   string        `json:"kind"`
	Report *model.Report `json:"report"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	renderer, err := s.newRenderer(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation", Field: "format"})
		return
	}
	body, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	rep, _, err := s.build(r, body)
	if err != nil {
		writeValidation(w, err)
		return
	}

	var buf bytes.Buffer
	if err := render.Write(&buf, renderer, rep); err != nil {
		zap.L().Error("api: render failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("format", renderer.Extension()),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, renderFailure{Error: err.Error(), Kind: "render", Report: rep})
		return
	}

	w.Header().Set("Content-Type", renderer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", render.Filename(rep, renderer)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "address parameter is required", Kind: "validation", Field: "address"})
		return
	}
	writeJSON(w, http.StatusOK, county.Locate(address))
}

type fieldsResponse struct {
	Categories []string          `json:"categories"`
	Fields     []model.FieldSpec `json:"fields"`
}

func (s *Server) handleFields(w http.ResponseWriter, _ *http.Request) {
	sch := s.svc.Schema()
	writeJSON(w, http.StatusOK, fieldsResponse{Categories: sch.Categories, Fields: sch.Fields})
}

func (s *Server) handleSourceAPI(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.DiagnoseAPI(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		writeValidation(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSourceCounty(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := s.svc.DiagnoseCounty(r.Context(), q.Get("address"), q.Get("county"))
	if err != nil {
		writeValidation(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
