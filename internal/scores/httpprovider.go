package scores

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/mind-engage/mindengage-grades/internal/course"
)

// HTTPProvider pulls leaf scores from an external assessment service.
// Authentication is OAuth2 client credentials; response fields are plucked
// by path so upstream payload additions don't force schema churn here.
type HTTPProvider struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

type HTTPConfig struct {
	BaseURL      string
	TokenURL     string // empty disables OAuth2 and uses a plain client
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	RateLimit    float64 // upstream calls per second; 0 disables the limiter
	Burst        int
}

func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	var h *http.Client
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
	} else {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	p := &HTTPProvider{http: h, baseURL: strings.TrimSuffix(cfg.BaseURL, "/")}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return p
}

// LeafScore GETs {base}/learners/{learner}/scores/{block}. A 404 means the
// learner has not attempted the block.
func (p *HTTPProvider) LeafScore(ctx context.Context, learnerID string, blockID course.BlockID) (LeafScore, bool, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return LeafScore{}, false, err
		}
	}
	u := fmt.Sprintf("%s/learners/%s/scores/%s", p.baseURL, url.PathEscape(learnerID), url.PathEscape(string(blockID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return LeafScore{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := p.http.Do(req)
	if err != nil {
		return LeafScore{}, false, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return LeafScore{}, false, nil
	}
	if res.StatusCode/100 != 2 {
		return LeafScore{}, false, fmt.Errorf("get leaf score: %s", res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return LeafScore{}, false, err
	}
	doc := gjson.ParseBytes(body)
	sc := LeafScore{
		RawEarned:   doc.Get("raw_earned").Float(),
		RawPossible: doc.Get("raw_possible").Float(),
		Graded:      doc.Get("graded").Bool(),
	}
	if w := doc.Get("weight"); w.Exists() && w.Type != gjson.Null {
		v := w.Float()
		sc.Weight = &v
	}
	return sc, true, nil
}
