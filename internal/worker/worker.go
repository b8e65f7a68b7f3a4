package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"ordercancel/internal"
	"ordercancel/internal/predict"
	"ordercancel/internal/review"
)

type Predictor interface {
	Predict(name string, content []byte) (predict.Result, error)
}

// Request is one upload sent over NATS. Content is base64 in JSON.
type Request struct {
	FileName   string `json:"file_name"`
	Content    []byte `json:"content"`
	Page       int    `json:"page,omitempty"`
	Size       int    `json:"size,omitempty"`
	SortBy     string `json:"sort_by,omitempty"`
	Descending bool   `json:"descending,omitempty"`
}

type Response struct {
	BatchID    string                `json:"batch_id,omitempty"`
	Summary    review.Summary        `json:"summary"`
	Results    []internal.Prediction `json:"results"`
	Dropped    []internal.DroppedRow `json:"dropped,omitempty"`
	Page       int                   `json:"page,omitempty"`
	TotalPages int                   `json:"total_pages,omitempty"`
	Error      *ErrorBody            `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Options struct {
	Subject        string
	Queue          string
	PageSize       int
	MaxUploadBytes int64
}

type Service struct {
	conn      *nats.Conn
	predictor Predictor
	opts      Options
	log       *slog.Logger
}

func New(conn *nats.Conn, predictor Predictor, opts Options, log *slog.Logger) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = review.PageSizes[0]
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{conn: conn, predictor: predictor, opts: opts, log: log}
}

// Run serves requests on the queue group until ctx is done. Several workers
// on the same queue share the load.
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.conn.QueueSubscribe(s.opts.Subject, s.opts.Queue, func(msg *nats.Msg) {
		reply := s.handle(msg.Data)
		if err := msg.Respond(reply); err != nil {
			s.log.Error("respond", "subject", msg.Subject, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.opts.Subject, err)
	}
	s.log.Info("worker listening", "subject", s.opts.Subject, "queue", s.opts.Queue)

	<-ctx.Done()
	s.log.Info("worker shutting down")
	if err := sub.Drain(); err != nil {
		return err
	}
	return nil
}

func (s *Service) handle(data []byte) []byte {
	resp := s.process(data)
	out, err := json.Marshal(resp)
	if err != nil {
		out, _ = json.Marshal(Response{Error: &ErrorBody{Kind: "internal", Message: err.Error()}})
	}
	return out
}

func (s *Service) process(data []byte) Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return requestError(fmt.Errorf("decode request: %w", err))
	}
	if req.FileName == "" {
		return requestError(errors.New("file_name is required"))
	}
	if s.opts.MaxUploadBytes > 0 && int64(len(req.Content)) > s.opts.MaxUploadBytes {
		return requestError(fmt.Errorf("upload is %d bytes, limit is %d", len(req.Content), s.opts.MaxUploadBytes))
	}

	sortBy, err := review.ParseSortKey(req.SortBy)
	if err != nil {
		return requestError(err)
	}
	size := req.Size
	if size <= 0 {
		size = s.opts.PageSize
	}

	res, err := s.predictor.Predict(req.FileName, req.Content)
	if err != nil {
		return errorResponse(err)
	}
	page, err := review.Paginate(res.Predictions, review.Query{Page: req.Page, Size: size, SortBy: sortBy, Descending: req.Descending})
	if err != nil {
		return requestError(err)
	}
	return Response{
		BatchID:    res.BatchID,
		Summary:    res.Summary,
		Results:    page.Items,
		Dropped:    res.Dropped,
		Page:       page.Page,
		TotalPages: page.TotalPages,
	}
}

// requestError answers a malformed request.
func requestError(err error) Response {
	return Response{Results: []internal.Prediction{}, Error: &ErrorBody{Kind: "invalid_request", Message: err.Error()}}
}

// errorResponse answers a failed prediction. Problems with the upload keep
// their kind; anything else is a server fault, as on the HTTP API.
func errorResponse(err error) Response {
	kind := internal.ErrorKind(err)
	if kind == "" {
		kind = "internal"
	}
	return Response{Results: []internal.Prediction{}, Error: &ErrorBody{Kind: kind, Message: err.Error()}}
}
