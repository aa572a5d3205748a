package handler

import (
	"context"
	"database/sql"
	"errors"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pdfunlocker/internal/pdf"
	"pdfunlocker/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay free of business logic; everything flows through the service.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.PDFService) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/", Root())
	app.Get("/api/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/api/check-protected", CheckProtected(svc))
	app.Post("/api/remove-password", RemovePassword(svc))
	app.Post("/api/add-password", AddPassword(svc))
	app.Post("/api/inspect", InspectPDF(svc))

	app.Get("/api/jobs", ListJobs(svc))
	app.Get("/api/jobs/:id", GetJob(svc))
	app.Delete("/api/jobs/:id", DeleteJob(svc))
	app.Get("/api/jobs/:id/download", DownloadJob(svc))
}

// Root returns the service banner with the endpoint map.
func Root() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "PDF Unlocker API is running!",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"check_protected": "/api/check-protected",
				"remove_password": "/api/remove-password",
				"add_password":    "/api/add-password",
				"inspect":         "/api/inspect",
				"jobs":            "/api/jobs",
				"health":          "/api/health",
			},
		})
	}
}

// HealthCheck verifies DB connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy", "service": "pdf-unlocker"})
	}
}

// LivenessProbe is a simple liveness check.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// CheckProtected reports whether the uploaded PDF is password protected.
func CheckProtected(svc service.PDFService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, fh, err := uploadedFile(c)
		if err != nil {
			return uploadError(c, err)
		}
		defer f.Close()

		res, err := svc.CheckProtected(c.UserContext(), f, fh.Filename, fh.Size)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// RemovePassword strips password protection and returns the unlocked PDF.
func RemovePassword(svc service.PDFService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, fh, err := uploadedFile(c)
		if err != nil {
			return uploadError(c, err)
		}
		defer f.Close()

		password := c.FormValue("password")

		res, err := svc.RemovePassword(c.UserContext(), f, fh.Filename, fh.Size, password)
		if err != nil {
			return mapServiceError(c, err)
		}
		return sendProcessedFile(c, res)
	}
}

// AddPassword protects the uploaded PDF and returns the encrypted copy.
func AddPassword(svc service.PDFService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, fh, err := uploadedFile(c)
		if err != nil {
			return uploadError(c, err)
		}
		defer f.Close()

		password := c.FormValue("password")
		ownerPassword := c.FormValue("owner_password")

		res, err := svc.AddPassword(c.UserContext(), f, fh.Filename, fh.Size, password, ownerPassword)
		if err != nil {
			return mapServiceError(c, err)
		}
		return sendProcessedFile(c, res)
	}
}

// InspectPDF returns metadata and a text preview for the upload.
func InspectPDF(svc service.PDFService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, fh, err := uploadedFile(c)
		if err != nil {
			return uploadError(c, err)
		}
		defer f.Close()

		res, err := svc.Inspect(c.UserContext(), f, fh.Filename, fh.Size)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// ListJobs returns job history with limit & offset.
func ListJobs(svc service.PDFService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limitStr := c.Query("limit", "10")
		offsetStr := c.Query("offset", "0")
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.ListJobs(c.UserContext(), limit, offset)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetJob returns a job by ID.
func GetJob(svc service.PDFService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		job, err := svc.GetJob(c.UserContext(), id)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(job)
	}
}

// DeleteJob removes a job and its archived output.
func DeleteJob(svc service.PDFService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.DeleteJob(c.UserContext(), id); err != nil {
			return mapServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadJob returns a presigned URL for the job's archived output.
func DownloadJob(svc service.PDFService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		url, err := svc.JobDownloadURL(c.UserContext(), id)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	}
}

var (
	errFileRequired = errors.New("file is required")
	errFileOpen     = errors.New("cannot open uploaded file")
)

// uploadedFile opens the multipart "file" field. Callers translate failures
// through uploadError.
func uploadedFile(c *fiber.Ctx) (multipart.File, *multipart.FileHeader, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, nil, errFileRequired
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errFileOpen
	}
	return f, fh, nil
}

// uploadError writes the error response for a failed multipart extraction.
func uploadError(c *fiber.Ctx, err error) error {
	if errors.Is(err, errFileOpen) {
		return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
	}
	return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
}

// sendProcessedFile streams a workspace output as an attachment.
func sendProcessedFile(c *fiber.Ctx, res *service.ProcessResult) error {
	if res.JobID != "" {
		c.Set("X-Job-ID", res.JobID)
	}
	return c.Download(res.Path, res.DownloadName)
}

// mapServiceError translates service and pdf errors into the JSON error envelope.
func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotPDF):
		return writeError(c, fiber.StatusBadRequest, "NOT_A_PDF", "File must be a PDF")
	case errors.Is(err, service.ErrPasswordRequired):
		return writeError(c, fiber.StatusBadRequest, "PASSWORD_REQUIRED", "Password is required")
	case errors.Is(err, service.ErrPasswordTooShort):
		return writeError(c, fiber.StatusBadRequest, "PASSWORD_TOO_SHORT", "Password must be at least 4 characters long")
	case errors.Is(err, pdf.ErrInvalidPassword):
		return writeError(c, fiber.StatusBadRequest, "INVALID_PASSWORD", "Invalid password or unsupported encryption method")
	case errors.Is(err, service.ErrAlreadyProtected):
		return writeError(c, fiber.StatusBadRequest, "ALREADY_PROTECTED", "PDF is already password protected. Please remove existing password first.")
	case errors.Is(err, service.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "job not found")
	case errors.Is(err, service.ErrNoArtifact):
		return writeError(c, fiber.StatusNotFound, "NO_ARTIFACT", "job has no archived output")
	case errors.Is(err, pdf.ErrUnreadable):
		return writeError(c, fiber.StatusInternalServerError, "UNREADABLE", "Unable to analyze PDF file")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
