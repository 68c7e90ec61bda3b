package dashboard

// indexHTML is the whole dashboard UI: one page that polls the JSON API
// every three seconds. No build step, no assets to serve.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>queuectl dashboard</title>
<style>
  body { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; margin: 2rem; background: #111; color: #ddd; }
  h1 { font-size: 1.2rem; }
  table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
  th, td { text-align: left; padding: 0.3rem 0.8rem; border-bottom: 1px solid #333; }
  th { color: #888; font-weight: normal; }
  .counts span { margin-right: 1.5rem; }
  .state-pending { color: #e8c555; }
  .state-processing { color: #55aee8; }
  .state-completed { color: #6fd66f; }
  .state-failed { color: #e88855; }
  .state-dead { color: #e85555; }
  #meta { color: #666; margin-top: 1rem; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>queuectl</h1>
<div class="counts" id="counts"></div>
<table>
  <thead>
    <tr><th>id</th><th>state</th><th>priority</th><th>attempts</th><th>command</th><th>error</th></tr>
  </thead>
  <tbody id="jobs"></tbody>
</table>
<div id="meta"></div>
<script>
async function refresh() {
  try {
    const [status, jobs, metrics] = await Promise.all([
      fetch('/api/status').then(r => r.json()),
      fetch('/api/jobs?limit=50').then(r => r.json()),
      fetch('/api/metrics').then(r => r.json()),
    ]);

    document.getElementById('counts').innerHTML =
      Object.entries(status.counts || {})
        .map(([s, n]) => '<span class="state-' + s + '">' + s + ': ' + n + '</span>')
        .join('') +
      '<span>workers: ' + status.active_workers + '</span>';

    document.getElementById('jobs').innerHTML = (jobs.jobs || [])
      .map(j => '<tr>' +
        '<td>' + j.id + '</td>' +
        '<td class="state-' + j.state + '">' + j.state + '</td>' +
        '<td>' + j.priority + '</td>' +
        '<td>' + j.attempts + '</td>' +
        '<td>' + escapeHTML(j.command) + '</td>' +
        '<td>' + escapeHTML(j.error || '') + '</td>' +
        '</tr>')
      .join('');

    document.getElementById('meta').textContent =
      'total: ' + metrics.total_jobs +
      ' · avg runtime: ' + metrics.avg_runtime_seconds.toFixed(2) + 's' +
      ' · updated ' + new Date().toLocaleTimeString();
  } catch (e) {
    document.getElementById('meta').textContent = 'refresh failed: ' + e;
  }
}
function escapeHTML(s) {
  return String(s).replace(/[&<>"]/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));
}
refresh();
setInterval(refresh, 3000);
</script>
</body>
</html>
`
