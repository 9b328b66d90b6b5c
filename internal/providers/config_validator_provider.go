package providers

import (
	"errors"
	"fmt"
	"net/url"
	"time"
	"wakaproof/internal/structures"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return v.Errors
	}

	sources := len(cv.conf.Proof.HttpDateURLs)
	if cv.conf.Proof.NtpServer != "" {
		sources++
	}
	if cv.conf.Proof.WorldTimeURL != "" {
		sources++
	}
	if sources < 2 {
		return errors.New("proof: at least two timestamp sources must be configured")
	}

	hosts := make(map[string]bool, len(cv.conf.Proof.HttpDateURLs))
	for _, raw := range cv.conf.Proof.HttpDateURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("proof.httpDateURLs: invalid url %q", raw)
		}
		if hosts[u.Host] {
			return fmt.Errorf("proof.httpDateURLs: host %s listed more than once", u.Host)
		}
		hosts[u.Host] = true
	}

	if cv.conf.Schedule.Enabled && !ValidTimeOfDay(cv.conf.Schedule.At) {
		return fmt.Errorf("schedule.at must be HH:MM in UTC, got %q", cv.conf.Schedule.At)
	}
	return nil
}

// ValidTimeOfDay reports whether at is a two-digit HH:MM clock time.
func ValidTimeOfDay(at string) bool {
	if len(at) != 5 {
		return false
	}
	_, err := time.Parse("15:04", at)
	return err == nil
}
