package main

// General API documentation for swaggo. Regenerate with `swag init` before
// building with -tags=swagger.
//
// @title           localllm API
// @version         1.0
// @description     HTTP API for local model download, text generation and embeddings.
//
// @BasePath  /
//
// @schemes http
