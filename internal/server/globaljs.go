package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleTrackingScript serves the fg.js browser script.
func (s *Server) handleTrackingScript(c *gin.Context) {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://%s", scheme, c.Request.Host)

	c.Header("Cache-Control", "public, max-age=60")
	c.Data(http.StatusOK, "application/javascript", []byte(GenerateTrackingScript(serverURL)))
}

// GenerateTrackingScript renders fg.js pointed at serverURL.
//
// Elements marked data-fg-experiment get their assigned child
// (data-fg-variant) shown and an impression recorded on the server; clicks on
// the variant record a click, data-fg-convert elements record a conversion.
// window.fg.event(stage, props) appends to the funnel log for the tab session.
func GenerateTrackingScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';

  // Get or create visitor ID
  var vid=localStorage.getItem('fg_vid');
  if(!vid){
    vid=crypto.randomUUID();
    localStorage.setItem('fg_vid',vid);
  }

  // One funnel session per tab
  var sid=sessionStorage.getItem('fg_sid');
  if(!sid){
    sid=crypto.randomUUID();
    sessionStorage.setItem('fg_sid',sid);
  }

  // Plain string bodies go out as text/plain, which needs no CORS preflight.
  function post(path,body){
    navigator.sendBeacon(S+path,JSON.stringify(body));
  }

  function track(exp,variant,kind,revenue){
    var body={experiment:exp,variant:variant,kind:kind};
    if(revenue!==undefined)body.revenue=String(revenue);
    post('/v1/track',body);
  }

  function event(stage,props){
    props=props||{};
    post('/v1/events',{
      session_id:sid,
      stage:stage,
      helmet_id:props.helmet_id||'',
      network:props.network||'',
      value:props.value,
      timestamp:Date.now()
    });
  }

  var assigned={};

  document.querySelectorAll('[data-fg-experiment]').forEach(function(el){
    var exp=el.dataset.fgExperiment;
    fetch(S+'/v1/assign?experiment='+encodeURIComponent(exp)+'&visitor='+encodeURIComponent(vid))
      .then(function(r){return r.status===200?r.json():null;})
      .then(function(res){
        if(!res)return;
        assigned[exp]=res.variant;
        el.querySelectorAll('[data-fg-variant]').forEach(function(v){
          var match=v.dataset.fgVariant===res.variant;
          v.hidden=!match;
          if(match)v.addEventListener('click',function(){track(exp,res.variant,'click');});
        });
      });
  });

  document.querySelectorAll('[data-fg-convert]').forEach(function(el){
    el.addEventListener('click',function(){
      var exp=el.dataset.fgConvert;
      if(assigned[exp]===undefined)return;
      track(exp,assigned[exp],'conversion',el.dataset.fgRevenue);
    });
  });

  if(location.pathname==='/')event('homepage_visit');

  window.fg={event:event,track:track,visitor:vid,session:sid};
})();`, serverURL)
}
