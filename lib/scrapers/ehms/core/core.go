package core

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"ehms-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/ehms/core")

// Portal endpoints, relative to the client's base url. The base page
// doubles as the login form.
const (
	EndpointLogin       = "/"
	EndpointNewsBoard   = "/news_board.php"
	EndpointUserDetails = "/user_info.php"
)

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	Markers Markers
}

type ClientOptions struct {
	BaseUrl string
	// zero value means DefaultMarkers
	Markers Markers
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	// the client is shared across users, session cookies live on the
	// user record only. a client-level jar would leak one user's
	// session into another user's requests.
	client.GetClient().Jar = nil
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/ehms/http")

	markers := opts.Markers
	if markers == (Markers{}) {
		markers = DefaultMarkers
	}

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
		Markers: markers,
	}
	return c, nil
}

// Fetch retrieves an authenticated page for the given user. A user
// with no session logs in first; a stale session triggers exactly one
// re-login and one retry of the original request. A page that still
// shows the login screen right after a successful login fails with
// ErrAuthenticationLoop rather than looping.
func (c *Client) Fetch(ctx context.Context, endpoint string, user *User) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()

	loggedIn := false
	if len(user.SessionCookies()) == 0 {
		slog.DebugContext(ctx, "user has no session attached, logging in", "user", user.Login())
		err := c.login(ctx, user)
		if err != nil {
			return nil, err
		}
		loggedIn = true
	}

	for {
		slog.DebugContext(ctx, "retrieving data", "url", endpoint, "user", user.Login())
		res, err := c.Http.R().
			SetContext(ctx).
			SetCookies(cookieSlice(user.SessionCookies())).
			Get(endpoint)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch")
			return nil, err
		}
		if res.StatusCode() != http.StatusOK {
			statusErr := &UnexpectedStatusError{Code: res.StatusCode()}
			slog.ErrorContext(ctx, "ehms returned an unexpected status code", "code", res.StatusCode())
			span.SetStatus(codes.Error, statusErr.Error())
			return nil, statusErr
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse html")
			return nil, err
		}

		if c.Markers.Authenticated(doc) {
			slog.DebugContext(ctx, "successfully retrieved data", "url", endpoint, "user", user.Login())
			return doc, nil
		}

		if loggedIn {
			span.SetStatus(codes.Error, ErrAuthenticationLoop.Error())
			return nil, ErrAuthenticationLoop
		}

		slog.DebugContext(ctx, "session was inactive, logging back in", "user", user.Login())
		err = c.login(ctx, user)
		if err != nil {
			return nil, err
		}
		loggedIn = true
	}
}

func (c *Client) login(ctx context.Context, user *User) error {
	ctx, span := tracer.Start(ctx, "client:login")
	defer span.End()

	slog.DebugContext(ctx, "retrieving the login form")
	res, err := c.Http.R().
		SetContext(ctx).
		Get(EndpointLogin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login form")
		return err
	}
	if res.StatusCode() != http.StatusOK {
		statusErr := &UnexpectedStatusError{Code: res.StatusCode()}
		slog.ErrorContext(ctx, "ehms returned an unexpected status code", "code", res.StatusCode())
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse login form html")
		return err
	}

	form, err := extractLoginForm(doc)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// the session cookies are granted when the form is fetched, the
	// login POST only activates them
	cookies := res.Cookies()

	slog.DebugContext(ctx, "logging in", "user", user.Login())
	loginRes, err := c.Http.R().
		SetContext(ctx).
		SetFormData(form.payload(user.login, user.password)).
		SetCookies(cookies).
		Post(EndpointLogin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post login")
		return err
	}
	if loginRes.StatusCode() != http.StatusOK {
		statusErr := &UnexpectedStatusError{Code: loginRes.StatusCode()}
		slog.ErrorContext(ctx, "ehms returned an unexpected status code", "code", loginRes.StatusCode())
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	loginDoc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(loginRes.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse login response html")
		return err
	}

	switch c.Markers.ClassifyLogin(loginDoc) {
	case LoginOk:
		user.setSessionCookies(cookieMap(cookies))
		slog.DebugContext(ctx, "successfully logged in", "user", user.Login())
		return nil
	case LoginRateLimited:
		rateErr := &RateLimitExceededError{Login: user.Login()}
		slog.WarnContext(ctx, "user got rate-limited, wait or solve the captcha before logging in again", "user", user.Login())
		span.SetStatus(codes.Error, rateErr.Error())
		return rateErr
	case LoginConcurrentSession:
		concurrentErr := &ConcurrentSessionError{Login: user.Login()}
		slog.WarnContext(ctx, "user is already logged in on another device", "user", user.Login())
		span.SetStatus(codes.Error, concurrentErr.Error())
		return concurrentErr
	default:
		credsErr := &InvalidCredentialsError{Login: user.Login()}
		slog.WarnContext(ctx, "authentication failed, are the login details correct?", "user", user.Login())
		span.SetStatus(codes.Error, credsErr.Error())
		return credsErr
	}
}

func cookieSlice(cookies map[string]string) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		out = append(out, &http.Cookie{Name: name, Value: value})
	}
	return out
}

func cookieMap(cookies []*http.Cookie) map[string]string {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out
}
