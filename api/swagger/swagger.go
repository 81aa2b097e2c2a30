package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Almacen API",
        "description": "School warehouse, purchase order and supply distribution API",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Login and session introspection"},
        {"name": "Usuarios", "description": "User administration"},
        {"name": "Unidades", "description": "Measurement unit registry"},
        {"name": "Productos", "description": "Product ledger and movement log"},
        {"name": "Importaciones", "description": "Spreadsheet import and export"},
        {"name": "Pedidos", "description": "Purchase order workflow"},
        {"name": "Salones", "description": "Classrooms and distribution summary"},
        {"name": "Alumnos", "description": "Roster, supply lists and deliveries"},
        {"name": "Reportes", "description": "Asynchronous report generation"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login with email and password",
                "responses": {
                    "200": {"description": "Access token", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "security": [{"BearerAuth": []}],
                "summary": "Current authenticated user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/unidades": {
            "get": {
                "tags": ["Unidades"],
                "security": [{"BearerAuth": []}],
                "summary": "List measurement units",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Unidades"],
                "security": [{"BearerAuth": []}],
                "summary": "Create a measurement unit",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Duplicate name"}
                }
            }
        },
        "/productos": {
            "get": {
                "tags": ["Productos"],
                "security": [{"BearerAuth": []}],
                "summary": "List products with filters and pagination",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Productos"],
                "security": [{"BearerAuth": []}],
                "summary": "Create a product with a generated location code",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/productos/{id}/movimientos": {
            "get": {
                "tags": ["Productos"],
                "security": [{"BearerAuth": []}],
                "summary": "Movement log of one product",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Productos"],
                "security": [{"BearerAuth": []}],
                "summary": "Register a stock movement",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Insufficient stock"}
                }
            }
        },
        "/importaciones/productos": {
            "post": {
                "tags": ["Importaciones"],
                "security": [{"BearerAuth": []}],
                "summary": "Import a product spreadsheet",
                "responses": {
                    "200": {"description": "Row-level import report"}
                }
            }
        },
        "/pedidos": {
            "get": {
                "tags": ["Pedidos"],
                "security": [{"BearerAuth": []}],
                "summary": "List purchase orders",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Pedidos"],
                "security": [{"BearerAuth": []}],
                "summary": "Create a purchase order",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/salones/resumen": {
            "get": {
                "tags": ["Salones"],
                "security": [{"BearerAuth": []}],
                "summary": "Distribution summary across classrooms",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/reportes": {
            "post": {
                "tags": ["Reportes"],
                "security": [{"BearerAuth": []}],
                "summary": "Request an asynchronous report",
                "responses": {
                    "202": {"description": "Accepted"},
                    "403": {"description": "Report generation disabled"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "Envelope": {
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
