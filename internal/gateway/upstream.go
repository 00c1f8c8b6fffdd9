package gateway

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"
)

// Upstream forwards the request, path and query unchanged, to baseURL.
func Upstream(baseURL string, logger *zap.Logger) fiber.Handler {
	base := strings.TrimRight(baseURL, "/")
	return func(c *fiber.Ctx) error {
		if err := proxy.Do(c, base+c.OriginalURL()); err != nil {
			logger.Warn("upstream request failed", zap.String("path", c.Path()), zap.Error(err))
			return fiber.NewError(fiber.StatusBadGateway, "upstream unavailable")
		}
		c.Response().Header.Del(fiber.HeaderServer)
		return nil
	}
}
