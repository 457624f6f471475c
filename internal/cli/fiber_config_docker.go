//go:build docker

package cli

import "github.com/gofiber/fiber/v3"

// createFiberConfig returns Fiber configuration for Docker deployments. The
// proxy header is trusted because containers always sit behind an ingress.
func createFiberConfig(appName string) fiber.Config {
	return fiber.Config{
		AppName:     appName,
		ProxyHeader: fiber.HeaderXForwardedFor,
		TrustProxy:  true,
	}
}
