package ampersend

import (
	"net/http"
	"time"

	"github.com/kmjones1979/ampersend-sdk/facilitator"
	"github.com/kmjones1979/ampersend-sdk/logger"
	"github.com/kmjones1979/ampersend-sdk/metrics"
	"github.com/kmjones1979/ampersend-sdk/treasurer"
)

type Option func(*SDK)

func WithLogger(l logger.Logger) Option {
	return func(x *SDK) {
		x.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(x *SDK) {
		x.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(x *SDK) {
		x.timeout = t
	}
}

// WithHTTPClient is shared by the remote API client and the default facilitator.
func WithHTTPClient(c *http.Client) Option {
	return func(x *SDK) {
		x.httpClient = c
	}
}

// WithRequirementSelector overrides Config.RequirementIndex.
func WithRequirementSelector(s treasurer.RequirementSelector) Option {
	return func(x *SDK) {
		x.selector = s
	}
}

// WithFacilitator replaces the HTTP facilitator built from Config.Facilitator.
func WithFacilitator(f facilitator.Interface) Option {
	return func(x *SDK) {
		x.facilitator = f
	}
}
