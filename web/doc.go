// Package web exposes the ingestion and chat subsystems over HTTP.
//
// Every endpoint responds with a JSON envelope: {"success": true,
// "data": ...} on success, {"success": false, "error": "..."} on
// failure. Uploads are accepted asynchronously; clients poll
// /api/upload_progress/:session_id until the job reaches a terminal
// stage.
package web
