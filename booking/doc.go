// Package booking connects the agent roster to the vaccination store: an HTTP
// client for the bookings, records, clinic and vaccine endpoints, and the
// direct tools agents call through it.
//
// Every outbound request carries the session's forwarded authorization
// headers. Non-2xx answers become *Error values; tools surface them to the
// model as STORE_ERROR tool errors so the conversation can recover.
package booking
