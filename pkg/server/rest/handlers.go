package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/engine/aggregator"
	"lintang/saferoute/pkg/graphstore"
	"lintang/saferoute/pkg/guidance"
	"lintang/saferoute/pkg/server"
	"lintang/saferoute/pkg/server/rest/service"
	"lintang/saferoute/pkg/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

type NavigationService interface {
	Routes(ctx context.Context, srcLat, srcLon, dstLat, dstLon float64, types []string) (aggregator.Result, error)
	RoutesByAddress(ctx context.Context, fromAddress, toAddress string, types []string) (service.AddressRoutes, error)
	NearestNode(ctx context.Context, lat, lon float64) (datastructure.Node, float64, error)
	Reload(ctx context.Context) (*graphstore.Snapshot, error)
}

type NavigationHandler struct {
	svc          NavigationService
	promeMetrics *metrics
	validate     *validator.Validate
	trans        ut.Translator
}

func NavigatorRouter(r *chi.Mux, svc NavigationService, m *metrics) {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	validate := validator.New()
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	handler := &NavigationHandler{svc: svc, promeMetrics: m, validate: validate, trans: trans}

	r.Group(func(r chi.Router) {
		r.Route("/api/navigations", func(r chi.Router) {
			r.Post("/routes", handler.routes)
			r.Post("/routes-by-address", handler.routesByAddress)
			r.Get("/nearest", handler.nearestNode)
			r.Post("/admin/reload", handler.reload)
			r.Get("/hello", handler.Hello)
		})
	})
}

// RoutesRequest asks for one route per type between two coordinates.
type RoutesRequest struct {
	SrcLat float64  `json:"src_lat" validate:"required,lte=90,gte=-90"`
	SrcLon float64  `json:"src_lon" validate:"required,lte=180,gte=-180"`
	DstLat float64  `json:"dst_lat" validate:"required,lte=90,gte=-90"`
	DstLon float64  `json:"dst_lon" validate:"required,lte=180,gte=-180"`
	Types  []string `json:"types" validate:"required,min=1,dive,required"`
}

func (s *RoutesRequest) Bind(r *http.Request) error {
	if len(s.Types) == 0 {
		return errors.New("invalid request: at least one route type is required")
	}
	return nil
}

// RoutesByAddressRequest asks for routes between two free text addresses.
type RoutesByAddressRequest struct {
	FromAddress string   `json:"from_address" validate:"required"`
	ToAddress   string   `json:"to_address" validate:"required"`
	Types       []string `json:"types" validate:"omitempty,dive,required"`
}

func (s *RoutesByAddressRequest) Bind(r *http.Request) error {
	if s.FromAddress == "" || s.ToAddress == "" {
		return errors.New("invalid request: from_address and to_address are required")
	}
	return nil
}

type EdgeRes struct {
	From       int64   `json:"from"`
	To         int64   `json:"to"`
	Length     float64 `json:"length"`
	Risk       float64 `json:"risk"`
	GlobalRisk float64 `json:"global_risk"`
	StreetName string  `json:"street_name,omitempty"`
}

type RouteRes struct {
	Type       string    `json:"type"`
	Polyline   string    `json:"polyline"`
	Distance   float64   `json:"distance"`
	GlobalRisk float64   `json:"global_risk"`
	Cost       float64   `json:"cost"`
	Edges      []EdgeRes `json:"edges"`

	Instructions []guidance.DrivingInstruction `json:"instructions"`
}

type NodeRes struct {
	NodeID   int64   `json:"node_id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Distance float64 `json:"distance"`
}

type RoutesResponse struct {
	From   *NodeRes                  `json:"from,omitempty"`
	To     *NodeRes                  `json:"to,omitempty"`
	Origin *datastructure.Coordinate `json:"origin,omitempty"`
	Dest   *datastructure.Coordinate `json:"destination,omitempty"`
	Routes []RouteRes                `json:"routes"`
}

func NewRoutesResponse(res aggregator.Result) *RoutesResponse {
	resp := &RoutesResponse{Routes: make([]RouteRes, 0, len(res.Routes))}
	for _, t := range res.Routes.Types() {
		route := res.Routes[t]
		detail := res.Details[t]
		if resp.From == nil {
			resp.From = &NodeRes{NodeID: detail.From.ID, Lat: detail.From.Lat, Lon: detail.From.Lon,
				Distance: util.RoundFloat(detail.FromDistance, 2)}
			resp.To = &NodeRes{NodeID: detail.To.ID, Lat: detail.To.Lat, Lon: detail.To.Lon,
				Distance: util.RoundFloat(detail.ToDistance, 2)}
		}

		edges := make([]EdgeRes, 0, len(route.Edges))
		for _, e := range route.Edges {
			edges = append(edges, EdgeRes{
				From:       e.From,
				To:         e.To,
				Length:     util.RoundFloat(e.Length, 2),
				Risk:       util.RoundFloat(e.Risk, 4),
				GlobalRisk: util.RoundFloat(e.GlobalRisk, 2),
				StreetName: e.StreetName,
			})
		}
		resp.Routes = append(resp.Routes, RouteRes{
			Type:       t,
			Polyline:   route.Polyline(),
			Distance:   util.RoundFloat(route.TotalLength(), 2),
			GlobalRisk: util.RoundFloat(route.TotalGlobalRisk(), 2),
			Cost:       util.RoundFloat(detail.Cost, 2),
			Edges:      edges,

			Instructions: res.Directions[t],
		})
	}
	return resp
}

func (h *NavigationHandler) validateRequest(w http.ResponseWriter, r *http.Request, data interface{}) bool {
	if err := h.validate.Struct(data); err != nil {
		var vErrs validator.ValidationErrors
		if !errors.As(err, &vErrs) {
			render.Render(w, r, ErrInvalidRequest(err))
			return false
		}
		render.Render(w, r, ErrValidation(err, translateError(vErrs, h.trans)))
		return false
	}
	return true
}

func (h *NavigationHandler) countRoutes(res aggregator.Result) {
	for t := range res.Routes {
		h.promeMetrics.RouteQueryCount.WithLabelValues(t).Inc()
	}
}

// routes computes one route per requested type between two coordinates.
func (h *NavigationHandler) routes(w http.ResponseWriter, r *http.Request) {
	data := &RoutesRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, data) {
		return
	}

	res, err := h.svc.Routes(r.Context(), data.SrcLat, data.SrcLon, data.DstLat, data.DstLon, data.Types)
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}
	h.countRoutes(res)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewRoutesResponse(res))
}

// routesByAddress geocodes both addresses first. The safest route is always included.
func (h *NavigationHandler) routesByAddress(w http.ResponseWriter, r *http.Request) {
	data := &RoutesByAddressRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, data) {
		return
	}

	res, err := h.svc.RoutesByAddress(r.Context(), data.FromAddress, data.ToAddress, data.Types)
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}
	h.countRoutes(res.Result)

	resp := NewRoutesResponse(res.Result)
	resp.Origin = &res.From
	resp.Dest = &res.To
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *NavigationHandler) nearestNode(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		render.Render(w, r, ErrInvalidRequest(errors.New("lat and lon query parameters must be numbers")))
		return
	}
	if !datastructure.NewCoordinate(lat, lon).Valid() {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("coordinate (%v, %v) is out of range", lat, lon)))
		return
	}

	node, dist, err := h.svc.NearestNode(r.Context(), lat, lon)
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, &NodeRes{NodeID: node.ID, Lat: node.Lat, Lon: node.Lon, Distance: util.RoundFloat(dist, 2)})
}

type ReloadResponse struct {
	Nodes    int       `json:"nodes"`
	Edges    int       `json:"edges"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (h *NavigationHandler) reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Reload(r.Context())
	if err != nil {
		render.Render(w, r, ErrChi(err))
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, &ReloadResponse{Nodes: snap.Graph.NumNodes(), Edges: snap.Graph.NumEdges(), LoadedAt: snap.LoadedAt})
}

func (h *NavigationHandler) Hello(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, "Hello, World!")
}

type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText    string   `json:"status"`          // user-level status message
	AppCode       int64    `json:"code,omitempty"`  // application-specific error code
	ErrorText     string   `json:"error,omitempty"` // application-level error message, for debugging
	ErrValidation []string `json:"validation,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrValidation(err error, errV []error) render.Renderer {
	vv := []string{}
	for _, v := range errV {
		vv = append(vv, v.Error())
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: 400,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
		ErrValidation:  vv,
	}
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: 400,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrChi(err error) render.Renderer {
	statusText := ""
	switch getStatusCode(err) {
	case http.StatusNotFound:
		statusText = "Resource not found."
	case http.StatusInternalServerError:
		statusText = "Internal server error."
	case http.StatusConflict:
		statusText = "Resource conflict."
	case http.StatusBadRequest:
		statusText = "Bad request."
	case http.StatusServiceUnavailable:
		statusText = "Service unavailable."
	default:
		statusText = "Error."
	}

	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: getStatusCode(err),
		StatusText:     statusText,
		ErrorText:      err.Error(),
	}
}

func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ierr *server.Error
	if !errors.As(err, &ierr) {
		return http.StatusInternalServerError
	}
	switch ierr.Code() {
	case server.ErrInternalServerError:
		return http.StatusInternalServerError
	case server.ErrNotFound:
		return http.StatusNotFound
	case server.ErrConflict:
		return http.StatusConflict
	case server.ErrBadParamInput:
		return http.StatusBadRequest
	case server.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func translateError(validatorErrs validator.ValidationErrors, trans ut.Translator) (errs []error) {
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}
