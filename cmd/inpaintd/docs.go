package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           inpaintd API
// @version         1.0
// @description     HTTP API for image inpainting, plugins and backend switching.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
