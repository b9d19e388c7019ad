// Package http exposes the reservation engine over a JSON REST API.
//
// Every route except POST /signup and GET /metrics requires HTTP Basic
// credentials (e-mail and password) checked against the user store.
//
//   - POST /signup: self-registration. Body: {"email","username","password"}.
//     The new account holds the user role.
//   - GET /rooms, GET /rooms/{name}: catalog entries with their effective
//     status. POST /rooms, PUT /rooms/{name}, DELETE /rooms/{name} are admin
//     only and exchange the `roomDTO` payload defined in room_handler.go.
//   - GET /rooms/{name}/availability?date=&start=&end=: {"conflict","status"}
//     for a requested window.
//   - GET /rooms/{name}/reservations: the room's schedule.
//   - POST /reservations: submit a request. The response carries
//     "conflictWarning" when an approved reservation already overlaps.
//   - GET /reservations (admin), /reservations/mine, /reservations/pending
//     (admin), /reservations/{id} (owner or admin).
//   - POST /reservations/{id}/approve with optional {"override":true},
//     POST /reservations/{id}/reject, DELETE /reservations/{id} to cancel.
//   - GET /users, POST /users, PUT /users/{email}/role, DELETE /users/{email}:
//     administrator controlled account management.
//   - GET /reports/summary: admin dashboard counts.
//   - GET /events: server-sent stream of reservation events.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
