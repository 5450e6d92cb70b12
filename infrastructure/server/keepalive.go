package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type outcome struct {
	value any
	err   error
}

// computeDetached runs fn on a context that outlives the client connection,
// so caches are still written when the caller goes away.
func computeDetached(c echo.Context, fn func(context.Context) (any, error)) <-chan outcome {
	ctx := context.WithoutCancel(c.Request().Context())
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()
	return done
}

// startStream commits a 200 JSON response for streaming.
func startStream(c echo.Context, contentType string) {
	resp := c.Response()
	if resp.Committed {
		return
	}
	resp.Header().Set(echo.HeaderContentType, contentType)
	resp.Header().Set(echo.HeaderCacheControl, "no-cache, no-transform")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)
}

// respondWithKeepAlive waits for fn while writing a space every interval.
// Results ready before the first space get a normal response; later ones
// are appended to the committed 200 stream, with failures rendered by
// onError.
func respondWithKeepAlive(
	c echo.Context,
	interval time.Duration,
	fn func(context.Context) (any, error),
	onError func(error) (int, any),
) error {
	done := computeDetached(c, fn)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	resp := c.Response()
	for {
		select {
		case out := <-done:
			code, body := http.StatusOK, out.value
			if out.err != nil {
				code, body = onError(out.err)
			}
			if !resp.Committed {
				return c.JSON(code, body)
			}
			return json.NewEncoder(resp).Encode(body)

		case <-ticker.C:
			startStream(c, echo.MIMEApplicationJSONCharsetUTF8)
			if _, err := resp.Write([]byte(" ")); err != nil {
				return nil
			}
			resp.Flush()

		case <-c.Request().Context().Done():
			return nil
		}
	}
}
