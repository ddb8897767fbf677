package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Study Abroad API",
        "description": "Role based API for study abroad consultancy operations",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login, refresh and session management"},
        {"name": "Users", "description": "User account administration"},
        {"name": "Visa", "description": "Visa case workflow and documents"},
        {"name": "Consultations", "description": "Consultation booking and assignment"},
        {"name": "Countries", "description": "Destination country catalog"},
        {"name": "Courses", "description": "Preparation courses and enrollments"},
        {"name": "Reports", "description": "Asynchronous CSV and PDF exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "Tokens rotated"},
                    "401": {"description": "Invalid refresh token"}
                }
            }
        },
        "/visa-requests": {
            "post": {
                "tags": ["Visa"],
                "summary": "Open visa case",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Case opened with checklist"},
                    "409": {"description": "Open case already exists"}
                }
            },
            "get": {
                "tags": ["Visa"],
                "summary": "List visa cases",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"$ref": "#/responses/EnvelopeOK"}
                }
            }
        },
        "/visa-requests/{id}/assign": {
            "put": {
                "tags": ["Visa"],
                "summary": "Assign consultant",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Consultant assigned"},
                    "409": {"description": "Case no longer pending"}
                }
            }
        },
        "/visa-requests/{id}/steps/complete": {
            "put": {
                "tags": ["Visa"],
                "summary": "Complete workflow step",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Step completed, case advanced"},
                    "409": {"description": "Step out of order or documents pending"}
                }
            }
        },
        "/consultations": {
            "post": {
                "tags": ["Consultations"],
                "summary": "Book consultation",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Consultation booked"}
                }
            },
            "get": {
                "tags": ["Consultations"],
                "summary": "List consultations",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"$ref": "#/responses/EnvelopeOK"}
                }
            }
        },
        "/countries": {
            "get": {
                "tags": ["Countries"],
                "summary": "List destination countries",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"$ref": "#/responses/EnvelopeOK"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List preparation courses",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"$ref": "#/responses/EnvelopeOK"}
                }
            }
        },
        "/reports/generate": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue report export",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Job queued"},
                    "400": {"description": "Unsupported type or format"}
                }
            }
        },
        "/reports/download/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download report via signed token",
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "responses": {
        "EnvelopeOK": {
            "description": "Success",
            "schema": {"$ref": "#/definitions/ResponseEnvelope"}
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
