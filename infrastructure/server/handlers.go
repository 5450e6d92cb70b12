package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/application"
	"github.com/ahrav/shinise-scout/internal/domain"
)

const (
	maxPhotoPx      = 400
	photoCacheAge   = "public, max-age=86400"
	agentErrSummary = "通信エラー"
)

// AgentRequest asks for one agent's analysis of one shop.
type AgentRequest struct {
	AgentType   string `json:"agentType" validate:"required"`
	ShopName    string `json:"shopName" validate:"required"`
	ShopAddress string `json:"shopAddress"`
	ShopID      string `json:"shopId"`
	Force       bool   `json:"force"`
}

func (r AgentRequest) shop() domain.Shop {
	return domain.Shop{ID: r.ShopID, Name: r.ShopName, Address: r.ShopAddress}
}

// BatchRequest asks for several agents at once. An empty AgentTypes runs
// the whole catalog.
type BatchRequest struct {
	AgentTypes  []string `json:"agentTypes"`
	ShopName    string   `json:"shopName" validate:"required"`
	ShopAddress string   `json:"shopAddress"`
	ShopID      string   `json:"shopId"`
	Force       bool     `json:"force"`
}

// ReviewRequest names the shop whose reviews are graded.
type ReviewRequest struct {
	PlaceID  string `json:"placeId" validate:"required"`
	ShopName string `json:"shopName" validate:"required"`
}

// CourseShop is the part of a shop the course map needs.
type CourseShop struct {
	Name string `json:"displayName"`
}

// CourseRequest lists the shops of a walking course.
type CourseRequest struct {
	Shops   []CourseShop `json:"shops" validate:"required,min=1"`
	Station string       `json:"station"`
}

func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return c.Validate(dst)
}

func (s *Server) listAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, agents.Catalog())
}

func agentErrorBody(agentType string, err error) (int, any) {
	return statusOf(err), domain.AgentResult{
		AgentType: domain.TaskID(agentType),
		AgentName: "Error",
		Icon:      "❌",
		Summary:   agentErrSummary,
		Details:   []string{messageOf(err)},
		RiskLevel: domain.RiskCaution,
	}
}

func (s *Server) runAgent(c echo.Context) error {
	var req AgentRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	task, err := agents.Lookup(domain.TaskID(req.AgentType))
	if err != nil {
		return err
	}

	return respondWithKeepAlive(c, s.cfg.KeepAliveInterval,
		func(ctx context.Context) (any, error) {
			return s.deps.Agents.RunTask(ctx, task, req.shop(), req.Force), nil
		},
		func(err error) (int, any) { return agentErrorBody(req.AgentType, err) },
	)
}

// runAgents streams one NDJSON line per finished agent in completion order.
func (s *Server) runAgents(c echo.Context) error {
	var req BatchRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	tasks := agents.AgentTasks()
	if len(req.AgentTypes) > 0 {
		tasks = tasks[:0]
		for _, id := range req.AgentTypes {
			t, err := agents.Lookup(domain.TaskID(id))
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
	}

	shop := domain.Shop{ID: req.ShopID, Name: req.ShopName, Address: req.ShopAddress}
	ctx := context.WithoutCancel(c.Request().Context())
	emissions := s.dispatcher.Dispatch(ctx, tasks, shop, req.Force)

	startStream(c, "application/x-ndjson")
	resp := c.Response()
	enc := json.NewEncoder(resp)
	ticker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-emissions:
			if !ok {
				return nil
			}
			if err := enc.Encode(e.Result); err != nil {
				return nil
			}
			resp.Flush()
		case <-ticker.C:
			if _, err := resp.Write([]byte(" ")); err != nil {
				return nil
			}
			resp.Flush()
		case <-c.Request().Context().Done():
			// Remaining agents finish in the background and fill the cache.
			return nil
		}
	}
}

func (s *Server) searchRequest(c echo.Context) (application.SearchRequest, error) {
	req := application.SearchRequest{
		Query: strings.TrimSpace(c.QueryParam("station")),
		Genre: c.QueryParam("genre"),
		Force: c.QueryParam("force") == "true",
	}

	mode, err := domain.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return req, err
	}
	req.Mode = mode

	if r := c.QueryParam("radius"); r != "" {
		radius, err := strconv.Atoi(r)
		if err != nil {
			return req, echo.NewHTTPError(http.StatusBadRequest, "radius must be an integer")
		}
		req.Radius = radius
	}

	lat, lng := c.QueryParam("lat"), c.QueryParam("lng")
	if lat != "" || lng != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		ln, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			return req, echo.NewHTTPError(http.StatusBadRequest, "lat and lng must be numbers")
		}
		req.Location = &domain.LatLng{Lat: la, Lng: ln}
	}
	return req, nil
}

func (s *Server) search(c echo.Context) error {
	req, err := s.searchRequest(c)
	if err != nil {
		return err
	}
	return respondWithKeepAlive(c, s.cfg.KeepAliveInterval,
		func(ctx context.Context) (any, error) { return s.deps.Search.Search(ctx, req) },
		errorBody,
	)
}

func errorBody(err error) (int, any) {
	return statusOf(err), map[string]string{"error": messageOf(err)}
}

func (s *Server) shopDetail(c echo.Context) error {
	id := c.Param("id")
	force := c.QueryParam("force") == "true"
	return respondWithKeepAlive(c, s.cfg.KeepAliveInterval,
		func(ctx context.Context) (any, error) { return s.deps.Shops.Detail(ctx, id, force) },
		errorBody,
	)
}

func (s *Server) analyzeReviews(c echo.Context) error {
	var req ReviewRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	return respondWithKeepAlive(c, s.cfg.KeepAliveInterval,
		func(ctx context.Context) (any, error) {
			analysis, err := s.deps.Reviews.Analyze(ctx, req.PlaceID, req.ShopName)
			if err != nil {
				return nil, err
			}
			return map[string]any{"analysis": analysis}, nil
		},
		errorBody,
	)
}

func (s *Server) courseMap(c echo.Context) error {
	var req CourseRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	names := make([]string, 0, len(req.Shops))
	for _, sh := range req.Shops {
		names = append(names, sh.Name)
	}
	return respondWithKeepAlive(c, s.cfg.KeepAliveInterval,
		func(ctx context.Context) (any, error) {
			url, err := s.deps.Course.Illustrate(ctx, req.Station, names)
			if err != nil {
				return nil, err
			}
			return map[string]string{"mapUrl": url}, nil
		},
		errorBody,
	)
}

func photoDim(v string) uint {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxPhotoPx {
		return maxPhotoPx
	}
	return uint(n)
}

// photo proxies a place photo so the maps key never reaches the browser.
func (s *Server) photo(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing photo name")
	}
	if s.deps.Photos == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Photo provider not configured")
	}

	contentType, body, err := s.deps.Photos.Photo(c.Request().Context(), name,
		photoDim(c.QueryParam("maxWidthPx")), photoDim(c.QueryParam("maxHeightPx")))
	if err != nil {
		return fmt.Errorf("fetching photo: %w", err)
	}
	defer body.Close()

	c.Response().Header().Set(echo.HeaderCacheControl, photoCacheAge)
	return c.Stream(http.StatusOK, contentType, io.Reader(body))
}
