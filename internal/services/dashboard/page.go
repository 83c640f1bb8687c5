package dashboard

import "html/template"

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Refresh}}">
<title>Crop Recommendation</title>
<style>
body{font-family:Raleway,sans-serif;background:#f0fdf4;margin:0}
main{background:#fff;max-width:48rem;margin:5rem auto;padding:2rem;border-radius:.5rem;box-shadow:0 4px 12px rgba(0,0,0,.15)}
h2{color:#14532d;text-align:center}
.row{display:flex;justify-content:space-between;margin:1rem 0}
label{color:#22c55e}
input{border:1px solid #d1d5db;border-radius:.375rem;padding:.5rem;color:#6b7280;width:33%}
button{display:block;margin:2rem auto 0;padding:.6rem 2.5rem;font-weight:bold;color:#fff;background:linear-gradient(to right,#4ade80,#16a34a);border:0;border-radius:1.5rem;cursor:pointer}
.result{margin-top:1.5rem;padding:1rem;background:#dcfce7;border-radius:.375rem;text-align:center}
.result p{color:#14532d;font-size:1.25rem;font-weight:bold}
</style>
</head>
<body>
<main>
<h2>Crop Recommendation</h2>
{{range .Rows}}<div class="row"><label for="{{.Key}}">{{.Label}}</label><input id="{{.Key}}" type="text" value="{{.Display}}" readonly></div>
{{end}}<form method="post" action="/"><button type="submit">Recommend Now</button></form>
{{with .Recommendation}}<div class="result"><h3>Recommended Crop:</h3><p>{{.Label}}</p></div>{{end}}
</main>
</body>
</html>
`))

type pageData struct {
	Refresh        int
	Rows           []Row
	Recommendation *recommendationView
}

type recommendationView struct {
	Label string
}
