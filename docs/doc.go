// Package docs provides generated OpenAPI documentation.
//
// Quill API
//
//	@title			Quill API
//	@version		1.0
//	@description	Course and ebook generator: topic discovery, outlines, chapter content, marketing copy and DOCX export, metered by a signed credit cookie.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/quill
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/quill/serve.go -o ./swagger --parseDependency --parseInternal
