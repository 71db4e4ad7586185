package main

// General API documentation for swaggo. Run swag against this package to
// regenerate docs.
//
// @title           convd API
// @version         1.0
// @description     HTTP API for supervising mlx_lm model conversion, environment validation and venv provisioning.
//
// @BasePath  /
//
// @schemes http
