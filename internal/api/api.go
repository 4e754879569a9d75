package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	bulbview "github.com/wheelibin/yeetlight/internal/bulbView"
	commanddispatcher "github.com/wheelibin/yeetlight/internal/commandDispatcher"
	"github.com/wheelibin/yeetlight/internal/gateway"
	linkpropagator "github.com/wheelibin/yeetlight/internal/linkPropagator"
	"github.com/wheelibin/yeetlight/internal/models"
	"github.com/wheelibin/yeetlight/internal/registry"
)

type Controller interface {
	Snapshot() []models.BulbSnapshot
	Apply(ctx context.Context, name string, intent models.Intent) error
	EnableLink(name string, link string, enable bool) error
	Retry(ctx context.Context, name string, attr models.Attribute) error
	Rollback(name string, attr models.Attribute) error
	Refresh(ctx context.Context) error
}

type errBadRequest struct {
	msg string
}

func (e errBadRequest) Error() string {
	return e.msg
}

func query(r *http.Request, param string) (string, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return "", errBadRequest{fmt.Sprintf("missing parameter %s", param)}
	}
	return value, nil
}

func queryInt(r *http.Request, param string) (int, error) {
	value, err := query(r, param)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errBadRequest{fmt.Sprintf("%s is not a number: %q", param, value)}
	}
	return n, nil
}

func queryBool(r *http.Request, param string) (bool, error) {
	value, err := query(r, param)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errBadRequest{fmt.Sprintf("%s is not a boolean: %q", param, value)}
	}
	return b, nil
}

func queryAttribute(r *http.Request) (models.Attribute, error) {
	value, err := query(r, "attribute")
	if err != nil {
		return "", err
	}
	attr, err := models.ParseAttribute(value)
	if err != nil {
		return "", errBadRequest{err.Error()}
	}
	return attr, nil
}

func statusFor(err error) int {
	var badRequest errBadRequest
	switch {
	case errors.As(err, &badRequest),
		errors.Is(err, models.ErrOutOfRange),
		errors.Is(err, models.ErrInvalidColor):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrUnknownBulb),
		errors.Is(err, linkpropagator.ErrUnknownLink):
		return http.StatusNotFound
	case errors.Is(err, bulbview.ErrNothingToRetry):
		return http.StatusConflict
	case errors.Is(err, commanddispatcher.ErrNoColor):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bulbview.ErrNotInitialised):
		return http.StatusServiceUnavailable
	case errors.Is(err, gateway.ErrUnreachable),
		errors.Is(err, gateway.ErrRejected):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type server struct {
	logger     *log.Logger
	controller Controller
}

func (s *server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusBadGateway:
		s.logger.Warn("command not applied", "err", err)
	case http.StatusInternalServerError:
		s.logger.Error("request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}

// intent parses the request into an intent and applies it to the bulb named by ?bulb=
func (s *server) intent(parse func(r *http.Request) (models.Intent, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := query(r, "bulb")
		if err != nil {
			s.fail(w, err)
			return
		}
		intent, err := parse(r)
		if err != nil {
			s.fail(w, err)
			return
		}
		if err := s.controller.Apply(r.Context(), name, intent); err != nil {
			s.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

func parsePower(r *http.Request) (models.Intent, error) {
	value, err := query(r, "state")
	if err != nil {
		return models.Intent{}, err
	}
	power, err := models.ParsePower(value)
	if err != nil {
		return models.Intent{}, errBadRequest{err.Error()}
	}
	return models.PowerIntent(power), nil
}

func parseBrightness(r *http.Request) (models.Intent, error) {
	pct, err := queryInt(r, "brightness")
	return models.BrightnessIntent(pct), err
}

func parseTemperature(r *http.Request) (models.Intent, error) {
	temperature, err := queryInt(r, "temperature")
	return models.TemperatureIntent(temperature), err
}

func parseColor(r *http.Request) (models.Intent, error) {
	value, err := query(r, "rgb")
	if err != nil {
		return models.Intent{}, err
	}
	color, err := models.ParseColor(value)
	return models.ColorIntent(color), err
}

func (s *server) bulbs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.controller.Snapshot()); err != nil {
		s.logger.Error("Error encoding bulbs", "err", err)
	}
}

func (s *server) links(w http.ResponseWriter, r *http.Request) {
	name, err := query(r, "bulb")
	if err != nil {
		s.fail(w, err)
		return
	}
	link, err := query(r, "link")
	if err != nil {
		s.fail(w, err)
		return
	}
	enable, err := queryBool(r, "enable")
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.controller.EnableLink(name, link, enable); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) retry(w http.ResponseWriter, r *http.Request) {
	name, err := query(r, "bulb")
	if err != nil {
		s.fail(w, err)
		return
	}
	attr, err := queryAttribute(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.controller.Retry(r.Context(), name, attr); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) rollback(w http.ResponseWriter, r *http.Request) {
	name, err := query(r, "bulb")
	if err != nil {
		s.fail(w, err)
		return
	}
	attr, err := queryAttribute(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.controller.Rollback(name, attr); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Refresh(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NewHandler builds the daemon routes, events is served at /events
func NewHandler(logger *log.Logger, controller Controller, events http.Handler) http.Handler {
	s := &server{logger: logger, controller: controller}

	mux := http.NewServeMux()
	mux.Handle("/bulbs", Get(http.HandlerFunc(s.bulbs)))
	mux.Handle("/power", Post(s.intent(parsePower)))
	mux.Handle("/brightness", Post(s.intent(parseBrightness)))
	mux.Handle("/temperature", Post(s.intent(parseTemperature)))
	mux.Handle("/color", Post(s.intent(parseColor)))
	mux.Handle("/links", Post(http.HandlerFunc(s.links)))
	mux.Handle("/retry", Post(http.HandlerFunc(s.retry)))
	mux.Handle("/rollback", Post(http.HandlerFunc(s.rollback)))
	mux.Handle("/refresh", Post(http.HandlerFunc(s.refresh)))
	if events != nil {
		mux.Handle("/events", Get(events))
	}

	return WithLogging(logger, mux)
}
