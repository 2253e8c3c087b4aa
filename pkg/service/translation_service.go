package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dasmlab/pagetrans/pkg/pipeline"
	"github.com/dasmlab/pagetrans/pkg/translate"
	"github.com/sirupsen/logrus"
)

// Runner is the part of the pipeline the gRPC service needs.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) *pipeline.Result
	Languages() []translate.Language
}

// TranslationService exposes the extraction and translation pipeline over gRPC.
type TranslationService struct {
	// Runner executes pipeline requests.
	Runner Runner

	// Logger for service operations.
	Logger *logrus.Logger
}

// NewTranslationService creates a new TranslationService instance.
func NewTranslationService(runner Runner, logger *logrus.Logger) *TranslationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TranslationService{Runner: runner, Logger: logger}
}

// Translate runs one pipeline request. Malformed fields are rejected with
// InvalidArgument; pipeline failures come back in the response with ok=false.
func (s *TranslationService) Translate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := RequestFromStruct(in)
	if err != nil {
		s.Logger.WithError(err).Error("[gRPC] Translate: invalid request")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.Logger.WithFields(logrus.Fields{
		"input_length": len(req.Input),
		"start_page":   req.StartPage,
		"end_page":     req.EndPage,
		"target_lang":  req.TargetLanguage,
		"download":     req.Download,
	}).Info("[gRPC] Translate request received")

	start := time.Now()
	res := s.Runner.Run(ctx, req)

	out, err := ResultToStruct(res, time.Since(start))
	if err != nil {
		s.Logger.WithError(err).Error("[gRPC] Translate: failed to build response")
		return nil, status.Error(codes.Internal, fmt.Sprintf("build response: %v", err))
	}

	s.Logger.WithFields(logrus.Fields{
		"run_id": res.RunID,
		"ok":     res.OK(),
	}).Info("[gRPC] Translate response sent")
	return out, nil
}

// ListLanguages returns the language menu as {"languages": [{"name", "code"}]}.
func (s *TranslationService) ListLanguages(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	langs := s.Runner.Languages()
	list := make([]interface{}, 0, len(langs))
	for _, l := range langs {
		list = append(list, map[string]interface{}{"name": l.Name, "code": l.Code})
	}

	out, err := structpb.NewStruct(map[string]interface{}{"languages": list})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// RequestToStruct encodes a pipeline request for the wire.
func RequestToStruct(req pipeline.Request) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"input":           req.Input,
		"start_page":      req.StartPage,
		"end_page":        req.EndPage,
		"target_language": req.TargetLanguage,
		"download":        req.Download,
		"prefix":          req.Prefix,
	})
}

// RequestFromStruct decodes a wire request. Missing fields keep their zero value.
func RequestFromStruct(in *structpb.Struct) (pipeline.Request, error) {
	var req pipeline.Request
	if in == nil {
		return req, nil
	}
	f := in.GetFields()

	var err error
	if req.Input, err = stringField(f, "input"); err != nil {
		return req, err
	}
	if req.StartPage, err = intField(f, "start_page"); err != nil {
		return req, err
	}
	if req.EndPage, err = intField(f, "end_page"); err != nil {
		return req, err
	}
	if req.TargetLanguage, err = stringField(f, "target_language"); err != nil {
		return req, err
	}
	if req.Download, err = boolField(f, "download"); err != nil {
		return req, err
	}
	if req.Prefix, err = stringField(f, "prefix"); err != nil {
		return req, err
	}
	return req, nil
}

// ResultToStruct encodes a pipeline result for the wire.
func ResultToStruct(res *pipeline.Result, elapsed time.Duration) (*structpb.Struct, error) {
	pages := make([]interface{}, 0, len(res.Pages))
	for _, p := range res.Pages {
		page := map[string]interface{}{
			"page": p.Page,
			"text": p.Text,
		}
		if p.Err != nil {
			page["error_kind"] = string(p.Err.Kind)
			page["error_message"] = p.Err.Message
		}
		if p.File != "" {
			page["file"] = p.File
		}
		pages = append(pages, page)
	}

	files := make([]interface{}, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, f)
	}

	fields := map[string]interface{}{
		"run_id":          res.RunID,
		"ok":              res.OK(),
		"source":          string(res.Source),
		"target_language": res.TargetLanguage,
		"text":            res.Text(),
		"pages":           pages,
		"files":           files,
		"elapsed_seconds": elapsed.Seconds(),
	}
	if res.Err != nil {
		fields["error_kind"] = string(res.Err.Kind)
		fields["error_message"] = res.Err.Message
		if res.Err.Page >= 0 {
			fields["error_page"] = res.Err.Page
		}
	}
	return structpb.NewStruct(fields)
}

func present(f map[string]*structpb.Value, key string) (*structpb.Value, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func stringField(f map[string]*structpb.Value, key string) (string, error) {
	v, ok := present(f, key)
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s.StringValue, nil
}

func intField(f map[string]*structpb.Value, key string) (int, error) {
	v, ok := present(f, key)
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a whole number", key)
	}
	return int(n.NumberValue), nil
}

func boolField(f map[string]*structpb.Value, key string) (bool, error) {
	v, ok := present(f, key)
	if !ok {
		return false, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b.BoolValue, nil
}
