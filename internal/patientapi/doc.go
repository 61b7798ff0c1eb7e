// Package patientapi talks to the clinic's patient REST service.
//
// A patient is looked up by the number in its folder name; the first match
// supplies the record ID, the appointment date and the names printed on the
// template header. Templates are sent back with a multipart PUT to the
// record's URL. Network errors, 5xx and 429 responses are retried with
// backoff via retry-go; other 4xx responses fail immediately.
package patientapi
