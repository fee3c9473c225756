package server

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Hotel reservation cancellation</title>
<style>
body { font-family: sans-serif; max-width: 32rem; margin: 2rem auto; }
label { display: block; margin-top: .75rem; }
input { width: 100%; padding: .3rem; }
.error { color: #b00020; }
.result { margin-top: 1.5rem; font-weight: bold; }
</style>
</head>
<body>
<h1>Will this booking be cancelled?</h1>
{{with .Error}}<p class="error">Invalid input: {{.}}</p>{{end}}
<form method="post" action="/">
  <label>Lead time (days)
    <input type="number" name="lead_time" min="0" required value="{{with .Form}}{{.Get "lead_time"}}{{end}}"></label>
  <label>Special requests
    <input type="number" name="no_of_special_request" min="0" max="10" required value="{{with .Form}}{{.Get "no_of_special_request"}}{{end}}"></label>
  <label>Average price per room
    <input type="number" name="avg_price_per_room" min="0" step="0.01" required value="{{with .Form}}{{.Get "avg_price_per_room"}}{{end}}"></label>
  <label>Arrival month
    <input type="number" name="arrival_month" min="1" max="12" required value="{{with .Form}}{{.Get "arrival_month"}}{{end}}"></label>
  <label>Arrival date
    <input type="number" name="arrival_date" min="1" max="31" required value="{{with .Form}}{{.Get "arrival_date"}}{{end}}"></label>
  <p><button type="submit">Predict</button></p>
</form>
{{with .Prediction}}<p class="result">The customer is {{.Label}} ({{printf "%.1f" (pct .Probability)}}% chance of cancellation).</p>{{end}}
</body>
</html>
`
