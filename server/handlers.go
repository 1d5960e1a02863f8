package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/rushteam/basketrec/catalog"
	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/engine"
	"github.com/rushteam/basketrec/logging"
)

const (
	maxBodyBytes = 1 << 20
	// retryAfterSeconds 未训练时建议客户端等待的秒数
	retryAfterSeconds = "5"
)

type recommendRequest struct {
	Cart []string `json:"cart" validate:"max=1000,dive,required,max=128"`
	// SKUs 是 Cart 的别名，Cart 非空时忽略
	SKUs   []string `json:"skus" validate:"max=1000,dive,required,max=128"`
	TopK   *int     `json:"top_k"`
	UserID string   `json:"user_id" validate:"max=256"`
}

func (r *recommendRequest) items() []string {
	if len(r.Cart) > 0 {
		return r.Cart
	}
	if r.SKUs != nil {
		return r.SKUs
	}
	return []string{}
}

type recommendation struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
	Name   string  `json:"name"`
	Image  string  `json:"image"`
	Price  string  `json:"price"`
}

type recommendResponse struct {
	Input           []string         `json:"input"`
	Recommendations []recommendation `json:"recommendations"`
}

type healthResponse struct {
	Ready bool `json:"ready"`
	engine.Status
}

type trainResponse struct {
	Status string `json:"status"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, validationMessage(err))
		return
	}

	topK := s.rcfg.DefaultTopK()
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK <= 0 {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "top_k must be a positive integer")
		return
	}
	topK = min(topK, s.rcfg.MaxTopK())

	ctx := r.Context()
	if d := s.rcfg.DefaultTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	cart := req.items()
	rctx := &core.RecommendContext{UserID: req.UserID, Cart: cart, TopK: topK}
	items, err := s.pipeline.Run(ctx, rctx, nil)
	if err != nil {
		s.writeRecommendError(w, r, err)
		return
	}

	resp := recommendResponse{Input: cart, Recommendations: make([]recommendation, 0, len(items))}
	for _, it := range items {
		p := catalog.ProductOf(it)
		resp.Recommendations = append(resp.Recommendations, recommendation{
			ItemID: it.ID,
			Score:  it.Score,
			Name:   p.Name,
			Image:  p.ImageURL,
			Price:  p.Price,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeRecommendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrModelNotReady):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusServiceUnavailable, CodeModelNotReady, "model is training, please retry later")
	case core.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, CodeTimeout, "recommendation timed out")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("recommend failed")
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.model.Status()
	writeJSON(w, http.StatusOK, healthResponse{Ready: st.State == engine.StateTrained, Status: st})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	err := s.model.TrainAsync(r.Context())
	switch {
	case errors.Is(err, core.ErrTrainingInProgress):
		writeError(w, http.StatusConflict, CodeTrainingInProgress, "training already in progress")
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("start training failed")
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	default:
		logging.Ctx(r.Context()).Info().Msg("training started")
		writeJSON(w, http.StatusAccepted, trainResponse{Status: "training_started"})
	}
}
