package controllers

import (
	"errors"
	"net/http"
	"time"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/providers"
	"wakaproof/internal/services"
	"wakaproof/internal/store"

	json "github.com/goccy/go-json"
)

type ApiController struct {
	logger  providers.Logger
	store   store.Store
	service services.DailyServiceInterface
	cache   providers.CacheProviderInterface
}

func NewApiController(logger providers.Logger, st store.Store, service services.DailyServiceInterface, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		store:   st,
		service: service,
		cache:   cache,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (ac *ApiController) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		ac.logger.Errorf(providers.TypeAPI, "request failed: %s", err)
		http.Error(w, "Internal Server Error", code)
		return
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func queryDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return time.Time{}, models.Invalidf("date", "%q is not YYYY-MM-DD", raw)
	}
	return d, nil
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, data)
		return
	}

	result, err := compute()
	if err != nil {
		ac.writeError(w, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		ac.writeError(w, err)
		return
	}

	ac.cache.Set(cacheKey, gson)
	writeJSON(w, http.StatusOK, gson)
}

func (ac *ApiController) GetDay(w http.ResponseWriter, r *http.Request) {
	d, err := queryDate(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	ac.serveFromCacheOrCompute(w, "day:"+calendar.Format(d), func() (any, error) {
		return ac.store.ReadDaily(d)
	})
}

func (ac *ApiController) GetWeek(w http.ResponseWriter, r *http.Request) {
	d, err := queryDate(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	key := calendar.WeekKeyFor(d)
	ac.serveFromCacheOrCompute(w, "week:"+key.String(), func() (any, error) {
		return ac.store.ReadWeek(key)
	})
}

func (ac *ApiController) GetMonth(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("month")
	key, err := calendar.ParseMonth(raw)
	if err != nil {
		ac.writeError(w, models.Invalidf("month", "%q is not YYYY-MM", raw))
		return
	}
	ac.serveFromCacheOrCompute(w, "month:"+key.String(), func() (any, error) {
		return ac.store.ReadMonth(key)
	})
}

// Verify is never cached: its answer depends on the file on disk right now.
func (ac *ApiController) Verify(w http.ResponseWriter, r *http.Request) {
	d, err := queryDate(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	rep, err := ac.service.Verify(d)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	gson, err := json.Marshal(rep)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gson)
}

// invalidate drops the cached views a new revision of date can change: the day
// itself, its week, and both the week's month and the calendar month of date.
func (ac *ApiController) invalidate(d time.Time) {
	week := calendar.WeekKeyFor(d)
	ac.cache.Delete(
		"day:"+calendar.Format(d),
		"week:"+week.String(),
		"month:"+week.MonthKey().String(),
		"month:"+calendar.MonthKeyFor(d).String(),
	)
}

func (ac *ApiController) Fetch(w http.ResponseWriter, r *http.Request) {
	d, err := queryDate(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	res, err := ac.service.FetchDay(r.Context(), d)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	gson, err := json.Marshal(res)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	code := http.StatusOK
	if res.Result != store.WriteUnchanged {
		code = http.StatusCreated
		ac.invalidate(d)
	}
	writeJSON(w, code, gson)
}
