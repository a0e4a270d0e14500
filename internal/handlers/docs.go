package handlers

import (
	"encoding/json"
	"net/http"
)

func stationSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":           map[string]string{"type": "string", "example": "USW00094728"},
			"name":         map[string]string{"type": "string"},
			"latitude":     map[string]string{"type": "number"},
			"longitude":    map[string]string{"type": "number"},
			"elevation":    map[string]interface{}{"type": "number", "nullable": true},
			"period_start": map[string]string{"type": "integer"},
			"period_end":   map[string]string{"type": "integer"},
		},
	}
}

// importedStationSchema adds the lookup-only fields to the station schema
func importedStationSchema() map[string]interface{} {
	schema := stationSchema()
	props := schema["properties"].(map[string]interface{})
	props["raw_data_url"] = map[string]string{"type": "string"}
	props["imported_at"] = map[string]interface{}{
		"type":        "string",
		"format":      "date-time",
		"description": "Last import into the station store; absent without a store",
	}
	return schema
}

func errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
			},
		},
	}
}

func stationIDParameter() map[string]interface{} {
	return map[string]interface{}{
		"name":        "id",
		"in":          "path",
		"description": "GHCN-Daily station ID",
		"required":    true,
		"schema":      map[string]string{"type": "string"},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the climatecheck API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "climatecheck API",
			"description": "Station catalog and temperature analysis for GHCN-Daily weather stations",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/stations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List stations",
					"description": "List catalog stations in file order, optionally restricted to a map viewport",
					"parameters": []map[string]interface{}{
						{
							"name":        "bbox",
							"in":          "query",
							"description": "Viewport as minLon,minLat,maxLon,maxLat (edges included)",
							"required":    false,
							"schema":      map[string]string{"type": "string", "example": "-80,10,-60,45"},
						},
						{
							"name":        "page",
							"in":          "query",
							"description": "Page number (default: 1)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1},
						},
						{
							"name":        "limit",
							"in":          "query",
							"description": "Stations per page (default: 1000, max: 10000)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1000},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"data": map[string]interface{}{
												"type":  "array",
												"items": stationSchema(),
											},
											"total":       map[string]string{"type": "integer"},
											"page":        map[string]string{"type": "integer"},
											"limit":       map[string]string{"type": "integer"},
											"total_pages": map[string]string{"type": "integer"},
										},
									},
								},
							},
						},
						"400": errorResponse("Invalid bbox"),
					},
				},
			},
			"/api/stations/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Get station",
					"parameters": []map[string]interface{}{stationIDParameter()},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Station metadata and the link to its raw daily series",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{"schema": importedStationSchema()},
							},
						},
						"404": errorResponse("Station not in catalog"),
					},
				},
			},
			"/api/stations/{id}/analysis": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Analyse station temperatures",
					"description": "Fetches the station's daily series, picks TMAX or TAVG (whichever has more readings, " +
						"TAVG on ties), and returns the monthly mean grid since 1980 and the 5-year rolling mean of yearly means. " +
						"Fetch failures are reported and never retried.",
					"parameters": []map[string]interface{}{stationIDParameter()},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Analysis result",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"station":      stationSchema(),
											"raw_data_url": map[string]string{"type": "string"},
											"field":        map[string]interface{}{"type": "string", "enum": []string{"TMAX", "TAVG"}},
											"readings":     map[string]string{"type": "integer"},
											"monthly_grid": map[string]interface{}{
												"type": "object",
												"properties": map[string]interface{}{
													"years": map[string]interface{}{"type": "array", "items": map[string]string{"type": "integer"}},
													"cells": map[string]interface{}{
														"type": "array",
														"items": map[string]interface{}{
															"type": "object",
															"properties": map[string]interface{}{
																"year":  map[string]string{"type": "integer"},
																"month": map[string]string{"type": "integer"},
																"mean":  map[string]string{"type": "number"},
																"count": map[string]string{"type": "integer"},
															},
														},
													},
												},
											},
											"rolling_yearly_mean": map[string]interface{}{
												"type": "object",
												"properties": map[string]interface{}{
													"window": map[string]string{"type": "integer"},
													"points": map[string]interface{}{
														"type": "array",
														"items": map[string]interface{}{
															"type": "object",
															"properties": map[string]interface{}{
																"year":    map[string]string{"type": "integer"},
																"mean":    map[string]string{"type": "number"},
																"count":   map[string]string{"type": "integer"},
																"rolling": map[string]interface{}{"type": "number", "nullable": true},
															},
														},
													},
												},
											},
										},
									},
								},
							},
						},
						"404": errorResponse("Station not in catalog"),
						"422": errorResponse("Series has neither TMAX nor TAVG"),
						"502": errorResponse("Station series could not be fetched or parsed"),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Service is healthy"},
						"503": map[string]interface{}{"description": "Station store unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Metrics in Prometheus text format"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
