package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/mosaic"
	"github.com/matzehuels/mosaic/pkg/post"
	"github.com/matzehuels/mosaic/pkg/worker"
)

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "workers": s.registry.Len()})
}

func (s *Server) startWorker(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := startOptions(s.defaults, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.registry.Start(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/workers/"+id.String())
	writeJSON(w, http.StatusCreated, StartResponse{ID: id.String()})
}

// startOptions layers req over the server-wide defaults. Blocked users from
// both are combined.
func startOptions(defaults worker.Options, req StartRequest) (worker.Options, error) {
	if req.Origin == "" {
		return worker.Options{}, errors.New(errors.ErrCodeInvalidInput, "origin is required")
	}
	origin, err := images.DecodeBase64(req.Origin)
	if err != nil {
		return worker.Options{}, err
	}
	tags, err := post.ParseHashtags(req.Hashtags)
	if err != nil {
		return worker.Options{}, err
	}
	opts := defaults
	opts.Origin = origin
	opts.Hashtags = tags
	opts.Blocked = append(slices.Clone(defaults.Blocked), req.BlockedUsers...)
	switch len(req.TileSize) {
	case 0:
	case 2:
		opts.TileSize = images.Size{Width: req.TileSize[0], Height: req.TileSize[1]}
		if opts.TileSize.IsZero() {
			return worker.Options{}, errors.New(errors.ErrCodeInvalidSize, "tile size must be positive")
		}
	default:
		return worker.Options{}, errors.New(errors.ErrCodeInvalidSize, "tile_size must be [width, height]")
	}
	return opts, nil
}

func (s *Server) listWorkers(w http.ResponseWriter, _ *http.Request) {
	ids := s.registry.IDs()
	resp := ListResponse{IDs: make([]string, len(ids))}
	for i, id := range ids {
		resp.IDs[i] = id.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getArt(w http.ResponseWriter, r *http.Request) {
	wk, err := s.worker(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := artResponse(wk)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func artResponse(wk *worker.Worker) (ArtResponse, error) {
	art := wk.Art()
	tile := art.Tiling.Tile()
	png, err := art.PNG()
	if err != nil {
		return ArtResponse{}, errors.Wrap(errors.ErrCodeInternal, err, "encode art")
	}
	resp := ArtResponse{
		ID:         wk.ID().String(),
		Snapshot:   art.ID,
		MosaicArt:  base64.StdEncoding.EncodeToString(png),
		PiecePosts: piecePosts(art),
		Hashtags:   art.Hashtags,
		TileSize:   []uint32{tile.Width, tile.Height},
		Filled:     art.Complete(),
		Slots:      art.Tiling.Len(),
		Empty:      art.Empty,
		Running:    wk.Running(),
	}
	if err := wk.Err(); err != nil {
		resp.Error = errors.UserMessage(err)
	}
	return resp, nil
}

func piecePosts(art *mosaic.Art) []PiecePost {
	out := make([]PiecePost, len(art.Posts))
	for i, p := range art.Posts {
		id, _ := p.ID()
		out[i] = PiecePost{PostID: id, UserName: p.UserName(), Hashtag: p.Hashtag()}
	}
	return out
}

func (s *Server) stopWorker(w http.ResponseWriter, r *http.Request) {
	id, err := worker.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.registry.Stop(id) {
		s.writeError(w, r, errors.New(errors.ErrCodeWorkerNotFound, "worker %s not found", id))
		return
	}
	s.logger.Info("worker stopped via api", "worker", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addPost(w http.ResponseWriter, r *http.Request) {
	wk, err := s.worker(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req PostRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := errors.ValidateUserName(req.UserName); err != nil {
		s.writeError(w, r, err)
		return
	}
	tag := strings.TrimPrefix(strings.TrimSpace(req.Hashtag), "#")
	if err := errors.ValidateHashtag(tag); err != nil {
		s.writeError(w, r, err)
		return
	}
	img, err := images.DecodeBase64(req.Image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p := &post.DirectPost{Img: img, User: req.UserName, Tag: tag}
	if err := wk.Submit(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) blockUser(w http.ResponseWriter, r *http.Request) {
	wk, err := s.worker(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req BlockRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := errors.ValidateUserName(req.UserName); err != nil {
		s.writeError(w, r, err)
		return
	}
	wk.Block(req.UserName)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) worker(r *http.Request) (*worker.Worker, error) {
	id, err := worker.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return s.registry.Lookup(id)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body")
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Code: string(code), Error: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
