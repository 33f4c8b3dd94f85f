/*
Package signalr provides the client-side connection core for the ASP.NET
Core SignalR real-time messaging protocol.

This client only supports connecting to an ASP.NET Core SignalR server (not
the legacy ASP.NET SignalR server) and only speaks the WebSockets transport.
At a high level, establishing a connection goes through the following steps:

  - negotiate: use HTTP/HTTPS to obtain a connection id and the list of
    transports the server supports, following any redirects the server hands
    back
  - connect: open the WebSocket transport against the negotiated URL
  - handshake: read the empty JSON handshake frame the server sends once the
    transport is usable

Create a Connection with New, then call Start, Send and Stop on it.
*/
package signalr
