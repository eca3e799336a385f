package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/web/session"
)

// PageController serves the HTML shells of the browser pages. Access to
// them is decided by the request gate before they run.
type PageController struct{}

func NewPageController(g *gin.RouterGroup) *PageController {
	a := &PageController{}
	a.initRouter(g)
	return a
}

func (a *PageController) initRouter(g *gin.RouterGroup) {
	g.GET("/", a.index)
	g.GET("/login", a.page("Login"))
	g.GET("/register", a.page("Register"))
	g.GET("/forgot-password", a.page("Forgot password"))
	g.GET("/reset-password", a.page("Reset password"))

	for _, area := range []string{"patient", "doctor", "admin"} {
		g.GET("/"+area, a.area(area))
		g.GET("/"+area+"/*page", a.area(area))
	}
}

func (a *PageController) index(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, "/login")
}

func (a *PageController) page(title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		html(c, title, nil)
	}
}

func (a *PageController) area(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.Trim(c.Param("page"), "/")
		if name == "" {
			name = "dashboard"
		}
		data := gin.H{"role": role, "page": name}
		if claims := session.GetClaims(c); claims != nil {
			data["user"] = claims.Name
		}
		html(c, strings.ToUpper(role[:1])+role[1:]+" "+strings.ReplaceAll(name, "-", " "), data)
	}
}

// html renders the page shell with the provided data and title.
func html(c *gin.Context, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["title"] = title
	data["request_uri"] = c.Request.RequestURI
	data["cur_ver"] = config.GetVersion()
	c.HTML(http.StatusOK, "page.html", data)
}
