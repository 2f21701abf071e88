package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"radiochild/odatatable"
)

type queryResponse struct {
	QueryString      string `json:"queryString"`
	CountQueryString string `json:"countQueryString"`
}

type columnsResponse struct {
	EntityType  string              `json:"entityType"`
	MetadataURL string              `json:"metadataUrl"`
	Columns     []odatatable.Column `json:"columns"`
	Visible     []string            `json:"visible"`
}

// tableHandler exposes a loaded source to a UI.
type tableHandler struct {
	source *odatatable.Source
	logger *zap.SugaredLogger
}

func newRouter(source *odatatable.Source, logger *zap.SugaredLogger) http.Handler {
	h := &tableHandler{source: source, logger: logger}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/columns", h.columns)
	r.Get("/state", h.state)
	r.Put("/state", h.putState)
	r.Get("/query", h.query)
	r.Post("/query", h.query)
	r.Get("/rows", h.rows)
	r.Post("/rows", h.rows)
	return r
}

func (h *tableHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warnf("writing response: %s", err.Error())
	}
}

func (h *tableHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	var httpErr *odatatable.HTTPError
	switch {
	case errors.Is(err, odatatable.ErrNotReady):
		status = http.StatusServiceUnavailable
	case errors.As(err, &httpErr):
		status = httpErr.StatusCode
	}
	h.logger.Errorf("%s", err.Error())
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestState overlays a JSON body, when there is one, onto the source
// state. An explicit "globalFilter": "" clears the search.
func (h *tableHandler) requestState(r *http.Request) (odatatable.TableState, error) {
	st := h.source.State()
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return st, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return st, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return st, nil
	}
	var partial odatatable.TableState
	if err := json.Unmarshal(body, &partial); err != nil {
		return st, err
	}
	var search struct {
		GlobalFilter *string `json:"globalFilter"`
	}
	if err := json.Unmarshal(body, &search); err != nil {
		return st, err
	}
	merged := odatatable.MergeTableState(st, &partial)
	if search.GlobalFilter != nil {
		merged.GlobalFilter = *search.GlobalFilter
	}
	return merged, nil
}

func (h *tableHandler) columns(w http.ResponseWriter, r *http.Request) {
	root := h.source.TypeRoot()
	if root == nil {
		h.writeError(w, odatatable.ErrNotReady)
		return
	}
	h.writeJSON(w, http.StatusOK, columnsResponse{
		EntityType:  root.Type,
		MetadataURL: h.source.MetadataURL(),
		Columns:     h.source.Columns(),
		Visible:     odatatable.ColumnIDs(h.source.VisibleColumns()),
	})
}

func (h *tableHandler) state(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.source.State())
}

func (h *tableHandler) putState(w http.ResponseWriter, r *http.Request) {
	st, err := h.requestState(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.source.SetState(st)
	h.writeJSON(w, http.StatusOK, h.source.State())
}

func (h *tableHandler) query(w http.ResponseWriter, r *http.Request) {
	st, err := h.requestState(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, queryResponse{
		QueryString:      h.source.QueryStringFor(st),
		CountQueryString: h.source.CountQueryStringFor(st),
	})
}

func (h *tableHandler) rows(w http.ResponseWriter, r *http.Request) {
	st, err := h.requestState(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	page, err := h.source.FetchState(r.Context(), st)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func newServeCmd(g *globals) *cobra.Command {
	tf := &tableFlags{}
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve columns, query strings and rows of one source over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			source, err := a.load(ctx, tf)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           newRouter(source, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.logger.Infof("serving %s on %s", tf.baseAddress, addr)
				errCh <- srv.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
